// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

const (
	rdFieldRoute      = 1
	rdFieldRouteBack  = 2
	rdFieldSnrTowards = 3
	rdFieldSnrBack    = 4
)

// RouteDiscovery carries the ordered hop sequence (and, once complete,
// the return path) for a traceroute exchange. Repeated fields tolerate
// both packed and unpacked wire encodings.
type RouteDiscovery struct {
	Route      []uint32
	RouteBack  []uint32
	SnrTowards []int32
	SnrBack    []int32
}

// DecodeRouteDiscovery parses a RouteDiscovery from b.
func DecodeRouteDiscovery(b []byte) (*RouteDiscovery, error) {
	rd := &RouteDiscovery{}
	err := eachField(b, func(f field) error {
		var err error
		switch f.num {
		case rdFieldRoute:
			rd.Route, err = decodeRepeatedUint32(f, rd.Route)
		case rdFieldRouteBack:
			rd.RouteBack, err = decodeRepeatedUint32(f, rd.RouteBack)
		case rdFieldSnrTowards:
			rd.SnrTowards, err = decodeRepeatedInt32(f, rd.SnrTowards)
		case rdFieldSnrBack:
			rd.SnrBack, err = decodeRepeatedInt32(f, rd.SnrBack)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return rd, nil
}

// EncodeRouteDiscovery is the round-trip counterpart of
// DecodeRouteDiscovery; repeated fields are emitted packed.
func EncodeRouteDiscovery(rd *RouteDiscovery) []byte {
	var dst []byte
	if len(rd.Route) > 0 {
		dst = encodeBytes(dst, rdFieldRoute, packUint32(rd.Route))
	}
	if len(rd.RouteBack) > 0 {
		dst = encodeBytes(dst, rdFieldRouteBack, packUint32(rd.RouteBack))
	}
	if len(rd.SnrTowards) > 0 {
		dst = encodeBytes(dst, rdFieldSnrTowards, packInt32(rd.SnrTowards))
	}
	if len(rd.SnrBack) > 0 {
		dst = encodeBytes(dst, rdFieldSnrBack, packInt32(rd.SnrBack))
	}
	return dst
}

func packUint32(vals []uint32) []byte {
	var b []byte
	for _, v := range vals {
		b = encodeVarint(b, uint64(v))
	}
	return b
}

func packInt32(vals []int32) []byte {
	var b []byte
	for _, v := range vals {
		b = encodeVarint(b, uint64(v))
	}
	return b
}
