// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package crypto implements the symmetric AES-CTR scheme mesh packets are
// encrypted with, including pre-shared-key expansion and the per-packet
// nonce construction.
package crypto

import "fmt"

// defaultPSK is the well-known 16-byte key index 1 expands to. It is the
// same constant every public Meshtastic firmware ships, used whenever a
// channel has no explicit key configured.
var defaultPSK = [16]byte{
	0xd4, 0xf1, 0xbb, 0x3a, 0x20, 0x29, 0x07, 0x59,
	0xf0, 0xbc, 0xff, 0xab, 0xcf, 0x4e, 0x69, 0x01,
}

// ErrKeyLength reports raw key material longer than 32 bytes, which no
// expansion rule maps onto a 16- or 32-byte AES key.
type ErrKeyLength struct {
	Len int
}

func (e *ErrKeyLength) Error() string {
	return fmt.Sprintf("crypto: invalid key length %d after expansion", e.Len)
}

// ExpandPSK turns raw key material (as received from config or a channel
// definition) into a usable AES key, following the firmware's PSK
// conventions:
//
//   - length 0: no encryption (nil, nil)
//   - length 1: index 1..10 into the default PSK; index>1 increments the
//     last byte of the default key by (index-1) mod 256
//   - length 16: used as-is (AES-128)
//   - length 32: used as-is (AES-256)
//   - length <16: zero-padded on the right to 16 bytes (AES-128)
//   - length 17..31: zero-padded on the right to 32 bytes (AES-256)
func ExpandPSK(raw []byte) ([]byte, error) {
	switch {
	case len(raw) == 0:
		return nil, nil

	case len(raw) == 1:
		idx := raw[0]
		key := defaultPSK
		if idx > 1 {
			key[15] += idx - 1
		}
		return key[:], nil

	case len(raw) == 16, len(raw) == 32:
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil

	case len(raw) < 16:
		out := make([]byte, 16)
		copy(out, raw)
		return out, nil

	case len(raw) < 32:
		out := make([]byte, 32)
		copy(out, raw)
		return out, nil

	default:
		return nil, &ErrKeyLength{Len: len(raw)}
	}
}
