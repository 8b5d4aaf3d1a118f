// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package supervisor

import (
	"github.com/meshtastic/meshwatch/internal/dedupe"
	"github.com/meshtastic/meshwatch/internal/domain"
	"github.com/meshtastic/meshwatch/internal/queue"
)

// dedupeKey returns the stable content-hash key for e, or false if this
// event kind is never deduplicated (traceroutes and raw diagnostics are
// passed straight through: they carry their own natural infrequency).
func dedupeKey(e domain.Event) (string, bool) {
	switch e.Kind {
	case domain.KindNode:
		return dedupe.NodeIdentityKey(e.Node.ID, e.Node.HwModel, e.Node.Role), true
	case domain.KindPosition:
		return dedupe.PositionKey(e.Position.NodeID, e.Position.Latitude, e.Position.Longitude), true
	case domain.KindTelemetry:
		return dedupe.TelemetryKey(e.Telemetry.NodeID, e.Telemetry.Timestamp.UnixMilli()), true
	case domain.KindMessage:
		return dedupe.MessageKey(e.Message.PacketID), true
	default:
		return "", false
	}
}

// sourceOf returns the node id that originated e, used as the
// rate-limiter's per-source key.
func sourceOf(e domain.Event) string {
	switch e.Kind {
	case domain.KindNode:
		return e.Node.ID
	case domain.KindPosition:
		return e.Position.NodeID
	case domain.KindTelemetry:
		return e.Telemetry.NodeID
	case domain.KindMessage:
		return e.Message.FromID
	case domain.KindTraceroute:
		return e.Traceroute.FromID
	case domain.KindMQTTRaw:
		return e.MQTTRaw.NodeID
	default:
		return ""
	}
}

// priorityOf derives e's queue priority using queue.DefaultPriority,
// feeding it the fields the rule depends on for each kind.
func priorityOf(e domain.Event) queue.Priority {
	switch e.Kind {
	case domain.KindTelemetry:
		return queue.DefaultPriority(string(e.Kind), e.Telemetry.BatteryLevel, e.Telemetry.ChannelUtilization, false)
	case domain.KindMessage:
		return queue.DefaultPriority(string(e.Kind), nil, nil, e.Message.ToID == domain.BroadcastID)
	default:
		return queue.DefaultPriority(string(e.Kind), nil, nil, false)
	}
}
