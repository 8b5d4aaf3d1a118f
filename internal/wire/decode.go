// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/meshtastic/meshwatch/internal/log"
)

// ErrorKind distinguishes the ways a record can fail to decode.
type ErrorKind int

const (
	ErrTruncated ErrorKind = iota
	ErrVarint
	ErrEncoding
	ErrFieldLength
)

// DecodeError is returned by every Decode* function in this package.
type DecodeError struct {
	Kind ErrorKind
	Msg  string
}

func (e *DecodeError) Error() string { return e.Msg }

// field is one (field_number, wire_type, value) triple read off the wire.
type field struct {
	num     uint32
	typ     WireType
	varint  uint64
	fixed32 uint32
	fixed64 uint64
	bytes   []byte
}

// eachField walks b, invoking fn for every well-formed field. Unknown field
// numbers are still passed to fn — callers decide which field numbers
// matter and ignore the rest, which is how unrecognized fields end up
// "skipped" without needing a dedicated skip table.
func eachField(b []byte, fn func(field) error) error {
	pos := 0
	for pos < len(b) {
		tag, n, err := decodeVarint(b[pos:])
		if err != nil {
			return err
		}
		pos += n

		fieldNum := uint32(tag >> 3)
		wt := WireType(tag & 0x7)

		switch wt {
		case WireVarint:
			v, n, err := decodeVarint(b[pos:])
			if err != nil {
				return err
			}
			pos += n
			if err := fn(field{num: fieldNum, typ: wt, varint: v}); err != nil {
				return err
			}

		case WireFixed64:
			if pos+8 > len(b) {
				return &DecodeError{Kind: ErrTruncated, Msg: "truncated fixed64"}
			}
			v := binary.LittleEndian.Uint64(b[pos : pos+8])
			pos += 8
			if err := fn(field{num: fieldNum, typ: wt, fixed64: v}); err != nil {
				return err
			}

		case WireBytes:
			l, n, err := decodeVarint(b[pos:])
			if err != nil {
				return err
			}
			pos += n
			if l > maxFieldLen {
				return &DecodeError{Kind: ErrFieldLength, Msg: "field length exceeds cap"}
			}
			if pos+int(l) > len(b) {
				return &DecodeError{Kind: ErrTruncated, Msg: "truncated length-delimited field"}
			}
			data := b[pos : pos+int(l)]
			pos += int(l)
			if err := fn(field{num: fieldNum, typ: wt, bytes: data}); err != nil {
				return err
			}

		case WireStartGroup, WireEndGroup:
			// Deprecated group markers carry no length of their own; the
			// safest thing we can do without a full group-nesting decoder
			// is to treat the marker as content-free and move on.
			log.Debugf("wire: skipping deprecated group marker on field %d", fieldNum)

		case WireFixed32:
			if pos+4 > len(b) {
				return &DecodeError{Kind: ErrTruncated, Msg: "truncated fixed32"}
			}
			v := binary.LittleEndian.Uint32(b[pos : pos+4])
			pos += 4
			if err := fn(field{num: fieldNum, typ: wt, fixed32: v}); err != nil {
				return err
			}

		default:
			// Reserved wire type (6 or 7): we don't know its shape, so we
			// can't safely skip a variable amount. Consume one byte and
			// keep going rather than aborting the whole record.
			log.Warnf("wire: reserved wire type %d on field %d, consuming one byte", wt, fieldNum)
			pos++
		}
	}
	return nil
}

// asUint32 accepts either a varint or a fixed32 encoding of the same
// logical field, per the tolerant-peer rule for node numbers/packet ids.
func (f field) asUint32() uint32 {
	if f.typ == WireFixed32 {
		return f.fixed32
	}
	return uint32(f.varint)
}

// asSignedVarint interprets f.varint as raw two's complement (not zig-zag),
// the encoding SNR and similar signed fields use on the wire.
func (f field) asSignedVarint() int64 {
	return int64(f.varint)
}

func (f field) asString() (string, error) {
	if !utf8.Valid(f.bytes) {
		return "", &DecodeError{Kind: ErrEncoding, Msg: "invalid utf-8"}
	}
	return string(f.bytes), nil
}

// decodeRepeatedUint32 accepts a packed (single length-delimited field of
// back-to-back varints) or unpacked (one field per value) repeated integer
// sequence, appending to existing.
func decodeRepeatedUint32(f field, existing []uint32) ([]uint32, error) {
	switch f.typ {
	case WireBytes:
		pos := 0
		for pos < len(f.bytes) {
			v, n, err := decodeVarint(f.bytes[pos:])
			if err != nil {
				return nil, err
			}
			pos += n
			existing = append(existing, uint32(v))
		}
		return existing, nil
	case WireVarint:
		return append(existing, uint32(f.varint)), nil
	default:
		return existing, nil
	}
}

// decodeRepeatedInt32 is the signed-varint analog of decodeRepeatedUint32,
// used for per-hop SNR sequences.
func decodeRepeatedInt32(f field, existing []int32) ([]int32, error) {
	switch f.typ {
	case WireBytes:
		pos := 0
		for pos < len(f.bytes) {
			v, n, err := decodeVarint(f.bytes[pos:])
			if err != nil {
				return nil, err
			}
			pos += n
			existing = append(existing, int32(v))
		}
		return existing, nil
	case WireVarint:
		return append(existing, int32(f.varint)), nil
	default:
		return existing, nil
	}
}
