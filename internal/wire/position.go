// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

const (
	posFieldLatitudeI      = 1
	posFieldLongitudeI     = 2
	posFieldAltitude       = 3
	posFieldTime           = 4
	posFieldLocationSource = 5
	posFieldAltitudeSource = 6
	posFieldTimestamp      = 7
	posFieldGroundSpeed    = 14
	posFieldGroundTrack    = 15
	posFieldSatsInView     = 20
	posFieldPrecisionBits  = 21
)

// Position is a GPS fix. LatitudeI/LongitudeI are fixed-point degrees
// scaled by 1e7, matching the wire representation; callers convert to
// floating-point degrees on ingest.
type Position struct {
	LatitudeI      int32
	LongitudeI     int32
	Altitude       int32
	HasAltitude    bool
	Time           uint32
	LocationSource uint32
	AltitudeSource uint32
	Timestamp      uint32
	GroundSpeed    uint32
	GroundTrack    uint32
	SatsInView     uint32
	PrecisionBits  uint32
	HasPrecision   bool
}

// DecodePosition parses a Position from b. Altitude is carried as a
// signed 32-bit fixed field; some firmware versions omit it entirely
// rather than sending zero, so HasAltitude distinguishes "absent" from
// "zero".
func DecodePosition(b []byte) (*Position, error) {
	p := &Position{}
	err := eachField(b, func(f field) error {
		switch f.num {
		case posFieldLatitudeI:
			p.LatitudeI = int32(f.asUint32())
		case posFieldLongitudeI:
			p.LongitudeI = int32(f.asUint32())
		case posFieldAltitude:
			p.Altitude = int32(f.asUint32())
			p.HasAltitude = true
		case posFieldTime:
			p.Time = uint32(f.varint)
		case posFieldLocationSource:
			p.LocationSource = uint32(f.varint)
		case posFieldAltitudeSource:
			p.AltitudeSource = uint32(f.varint)
		case posFieldTimestamp:
			p.Timestamp = uint32(f.varint)
		case posFieldGroundSpeed:
			p.GroundSpeed = uint32(f.varint)
		case posFieldGroundTrack:
			p.GroundTrack = uint32(f.varint)
		case posFieldSatsInView:
			p.SatsInView = uint32(f.varint)
		case posFieldPrecisionBits:
			p.PrecisionBits = uint32(f.varint)
			p.HasPrecision = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// EncodePosition is the round-trip counterpart of DecodePosition.
func EncodePosition(p *Position) []byte {
	var dst []byte
	dst = encodeFixed32Field(dst, posFieldLatitudeI, uint32(p.LatitudeI))
	dst = encodeFixed32Field(dst, posFieldLongitudeI, uint32(p.LongitudeI))
	if p.HasAltitude {
		dst = encodeFixed32Field(dst, posFieldAltitude, uint32(p.Altitude))
	}
	if p.Time != 0 {
		dst = encodeVarintField(dst, posFieldTime, uint64(p.Time))
	}
	if p.LocationSource != 0 {
		dst = encodeVarintField(dst, posFieldLocationSource, uint64(p.LocationSource))
	}
	if p.AltitudeSource != 0 {
		dst = encodeVarintField(dst, posFieldAltitudeSource, uint64(p.AltitudeSource))
	}
	if p.Timestamp != 0 {
		dst = encodeVarintField(dst, posFieldTimestamp, uint64(p.Timestamp))
	}
	if p.GroundSpeed != 0 {
		dst = encodeVarintField(dst, posFieldGroundSpeed, uint64(p.GroundSpeed))
	}
	if p.GroundTrack != 0 {
		dst = encodeVarintField(dst, posFieldGroundTrack, uint64(p.GroundTrack))
	}
	if p.SatsInView != 0 {
		dst = encodeVarintField(dst, posFieldSatsInView, uint64(p.SatsInView))
	}
	if p.HasPrecision {
		dst = encodeVarintField(dst, posFieldPrecisionBits, uint64(p.PrecisionBits))
	}
	return dst
}

// Latitude and Longitude convert the fixed-point wire representation to
// floating-point degrees.
func (p *Position) Latitude() float64  { return float64(p.LatitudeI) * 1e-7 }
func (p *Position) Longitude() float64 { return float64(p.LongitudeI) * 1e-7 }
