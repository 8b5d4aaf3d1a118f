// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wire decodes the tag+wire-type encoded binary format carried
// inside mesh packets (envelope, packet, data, position, user, telemetry,
// map-report, route-discovery).
package wire

import "encoding/binary"

// WireType identifies how a field's value is encoded on the wire.
type WireType uint8

const (
	WireVarint     WireType = 0
	WireFixed64    WireType = 1
	WireBytes      WireType = 2
	WireStartGroup WireType = 3 // deprecated, tolerated
	WireEndGroup   WireType = 4 // deprecated, tolerated
	WireFixed32    WireType = 5
)

// maxFieldLen caps how many bytes a single length-delimited field may claim,
// defense in depth against a malicious or corrupted length prefix; the
// cap sits far above what any real record needs.
const maxFieldLen = 64 * 1024

// decodeVarint reads a base-128, little-endian-group varint from b. A
// varint spans at most 10 bytes (70 bits of payload, enough for a full
// 64-bit value plus the sign-extension bit); an 11th continuation byte is
// a structural error rather than a valid encoding.
func decodeVarint(b []byte) (uint64, int, error) {
	var val uint64
	var shift uint
	for i := 0; i < len(b); i++ {
		if i == 10 {
			return 0, 0, &DecodeError{Kind: ErrVarint, Msg: "varint exceeds 10 bytes"}
		}
		c := b[i]
		val |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return val, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, &DecodeError{Kind: ErrTruncated, Msg: "truncated varint"}
}

// encodeVarint appends v to dst in base-128 form. Used by tests and by
// callers that need to round-trip a record through the wire format.
func encodeVarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// encodeTag appends the field-number/wire-type tag byte(s).
func encodeTag(dst []byte, fieldNum uint32, wt WireType) []byte {
	return encodeVarint(dst, uint64(fieldNum)<<3|uint64(wt))
}

func encodeFixed32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

func encodeFixed64(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

func encodeBytes(dst []byte, fieldNum uint32, b []byte) []byte {
	dst = encodeTag(dst, fieldNum, WireBytes)
	dst = encodeVarint(dst, uint64(len(b)))
	return append(dst, b...)
}

func encodeVarintField(dst []byte, fieldNum uint32, v uint64) []byte {
	dst = encodeTag(dst, fieldNum, WireVarint)
	return encodeVarint(dst, v)
}

func encodeSignedVarintField(dst []byte, fieldNum uint32, v int64) []byte {
	return encodeVarintField(dst, fieldNum, uint64(v))
}

func encodeFixed32Field(dst []byte, fieldNum uint32, v uint32) []byte {
	dst = encodeTag(dst, fieldNum, WireFixed32)
	return encodeFixed32(dst, v)
}

func encodeBoolField(dst []byte, fieldNum uint32, v bool) []byte {
	if !v {
		return dst
	}
	return encodeVarintField(dst, fieldNum, 1)
}

func encodeStringField(dst []byte, fieldNum uint32, s string) []byte {
	if s == "" {
		return dst
	}
	return encodeBytes(dst, fieldNum, []byte(s))
}
