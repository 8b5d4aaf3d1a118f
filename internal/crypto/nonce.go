// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package crypto

import "encoding/binary"

// Nonce builds the 16-byte CTR nonce from a packet id and source node
// number: little-endian 64-bit packet id in bytes 0..7, little-endian
// 32-bit source node number in bytes 8..11, zero in bytes 12..15. The
// same nonce is used for encrypt and decrypt of a given packet.
func Nonce(packetID uint64, fromNode uint32) [16]byte {
	var n [16]byte
	binary.LittleEndian.PutUint64(n[0:8], packetID)
	binary.LittleEndian.PutUint32(n[8:12], fromNode)
	return n
}
