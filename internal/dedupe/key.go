// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dedupe

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// NodeIdentityKey is the stable dedupe key for a node-identity event.
func NodeIdentityKey(nodeID string, hwModel, role uint32) string {
	return fmt.Sprintf("nodeinfo:%s:%d:%d", nodeID, hwModel, role)
}

// PositionKey is the stable dedupe key for a position event, rounding
// coordinates to 1e-3 degrees so near-identical repeated fixes collapse
// to the same key.
func PositionKey(nodeID string, lat, lon float64) string {
	return fmt.Sprintf("position:%s:%.3f:%.3f", nodeID, round(lat, 3), round(lon, 3))
}

// TelemetryKey is the stable dedupe key for a telemetry event, flooring
// the timestamp to a 10-second bucket.
func TelemetryKey(nodeID string, timestampMs int64) string {
	bucket := (timestampMs / 10000) * 10000
	return fmt.Sprintf("telemetry:%s:%d", nodeID, bucket)
}

// MessageKey is the stable dedupe key for a text message, keyed on
// packet id alone (packet ids are themselves the at-least-once redelivery
// marker).
func MessageKey(packetID uint32) string {
	return fmt.Sprintf("message:%d", packetID)
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// Hash reduces a dedupe key to a fixed-width hex digest for use as the
// Set's map key and as the prefix of a QueueID.
func Hash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

// QueueID derives the opaque per-event identifier attached to admitted
// events for queue-level tracking: <16-hex of hash>-<ms timestamp>-<7
// char random>.
func QueueID(key string) (string, error) {
	h := Hash(key)
	ms := time.Now().UnixMilli()

	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	suffix := hex.EncodeToString(buf)[:7]

	return fmt.Sprintf("%s-%d-%s", h, ms, suffix), nil
}
