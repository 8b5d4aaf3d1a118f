// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

const (
	mrFieldLongName           = 1
	mrFieldShortName          = 2
	mrFieldRole               = 3
	mrFieldHwModel            = 4
	mrFieldFirmwareVersion    = 5
	mrFieldRegion             = 6
	mrFieldModemPreset        = 7
	mrFieldHasDefaultChannel  = 8
	mrFieldLatitudeI          = 9
	mrFieldLongitudeI         = 10
	mrFieldAltitude           = 11
	mrFieldPositionPrecision  = 12
	mrFieldNumOnlineLocalNode = 13
	mrFieldHasOptedIn         = 14
)

// MapReport is the broadcast identity+position bundle a node sends on
// the MAP_REPORT_APP port; it yields both a Node and a Position event.
type MapReport struct {
	LongName            string
	ShortName           string
	Role                uint32
	HwModel             uint32
	FirmwareVersion     string
	Region              uint32
	ModemPreset         uint32
	HasDefaultChannel   bool
	LatitudeI           int32
	LongitudeI          int32
	Altitude            int32
	PositionPrecision   uint32
	NumOnlineLocalNodes uint32
	HasOptedIn          bool
}

// DecodeMapReport parses a MapReport from b.
func DecodeMapReport(b []byte) (*MapReport, error) {
	m := &MapReport{}
	err := eachField(b, func(f field) error {
		switch f.num {
		case mrFieldLongName:
			s, err := f.asString()
			if err != nil {
				return err
			}
			m.LongName = s
		case mrFieldShortName:
			s, err := f.asString()
			if err != nil {
				return err
			}
			m.ShortName = s
		case mrFieldRole:
			m.Role = uint32(f.varint)
		case mrFieldHwModel:
			m.HwModel = uint32(f.varint)
		case mrFieldFirmwareVersion:
			s, err := f.asString()
			if err != nil {
				return err
			}
			m.FirmwareVersion = s
		case mrFieldRegion:
			m.Region = uint32(f.varint)
		case mrFieldModemPreset:
			m.ModemPreset = uint32(f.varint)
		case mrFieldHasDefaultChannel:
			m.HasDefaultChannel = f.varint != 0
		case mrFieldLatitudeI:
			m.LatitudeI = int32(f.asUint32())
		case mrFieldLongitudeI:
			m.LongitudeI = int32(f.asUint32())
		case mrFieldAltitude:
			m.Altitude = int32(f.asUint32())
		case mrFieldPositionPrecision:
			m.PositionPrecision = uint32(f.varint)
		case mrFieldNumOnlineLocalNode:
			m.NumOnlineLocalNodes = uint32(f.varint)
		case mrFieldHasOptedIn:
			m.HasOptedIn = f.varint != 0
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeMapReport is the round-trip counterpart of DecodeMapReport.
func EncodeMapReport(m *MapReport) []byte {
	var dst []byte
	dst = encodeStringField(dst, mrFieldLongName, m.LongName)
	dst = encodeStringField(dst, mrFieldShortName, m.ShortName)
	if m.Role != 0 {
		dst = encodeVarintField(dst, mrFieldRole, uint64(m.Role))
	}
	if m.HwModel != 0 {
		dst = encodeVarintField(dst, mrFieldHwModel, uint64(m.HwModel))
	}
	dst = encodeStringField(dst, mrFieldFirmwareVersion, m.FirmwareVersion)
	if m.Region != 0 {
		dst = encodeVarintField(dst, mrFieldRegion, uint64(m.Region))
	}
	if m.ModemPreset != 0 {
		dst = encodeVarintField(dst, mrFieldModemPreset, uint64(m.ModemPreset))
	}
	dst = encodeBoolField(dst, mrFieldHasDefaultChannel, m.HasDefaultChannel)
	dst = encodeFixed32Field(dst, mrFieldLatitudeI, uint32(m.LatitudeI))
	dst = encodeFixed32Field(dst, mrFieldLongitudeI, uint32(m.LongitudeI))
	if m.Altitude != 0 {
		dst = encodeFixed32Field(dst, mrFieldAltitude, uint32(m.Altitude))
	}
	if m.PositionPrecision != 0 {
		dst = encodeVarintField(dst, mrFieldPositionPrecision, uint64(m.PositionPrecision))
	}
	if m.NumOnlineLocalNodes != 0 {
		dst = encodeVarintField(dst, mrFieldNumOnlineLocalNode, uint64(m.NumOnlineLocalNodes))
	}
	dst = encodeBoolField(dst, mrFieldHasOptedIn, m.HasOptedIn)
	return dst
}

func (m *MapReport) Latitude() float64  { return float64(m.LatitudeI) * 1e-7 }
func (m *MapReport) Longitude() float64 { return float64(m.LongitudeI) * 1e-7 }
