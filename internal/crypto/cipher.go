// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
)

// Transform runs AES-CTR over src using key (16 or 32 bytes, already
// expanded by ExpandPSK) and the given nonce. CTR is its own inverse, so
// the same call encrypts or decrypts depending on which side calls it.
func Transform(key []byte, nonce [16]byte, src []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	stream := cipher.NewCTR(block, nonce[:])
	dst := make([]byte, len(src))
	stream.XORKeyStream(dst, src)
	return dst, nil
}

// LooksLikeRecord is the plaintext-sanity heuristic used when trying
// several candidate keys against the same ciphertext: it accepts a byte
// sequence as a plausible decoded wire record without fully decoding it.
func LooksLikeRecord(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	tag := b[0]
	wireType := tag & 0x7
	fieldNum := tag >> 3
	if fieldNum == 0 {
		return false
	}
	switch wireType {
	case 0, 1, 2, 3, 4, 5:
	default:
		return false
	}
	if wireType == 2 {
		remaining := b[1:]
		length, n := peekVarint(remaining)
		if n == 0 {
			return false
		}
		if length > uint64(len(remaining)-n) || length > 1000 {
			return false
		}
	}
	return true
}

// peekVarint is a minimal, panic-free varint reader used only by the
// sanity heuristic; it never needs to report structural errors, only
// "not a varint here".
func peekVarint(b []byte) (uint64, int) {
	var val uint64
	var shift uint
	for i := 0; i < len(b) && i < 10; i++ {
		c := b[i]
		val |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return val, i + 1
		}
		shift += 7
	}
	return 0, 0
}
