// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meshtastic/meshwatch/internal/domain"
	"github.com/meshtastic/meshwatch/internal/queue"
)

func TestDedupeKeyCoversFourKinds(t *testing.T) {
	node := domain.Event{Kind: domain.KindNode, Node: &domain.Node{ID: "!a", HwModel: 1, Role: 0}}
	pos := domain.Event{Kind: domain.KindPosition, Position: &domain.Position{NodeID: "!a", Latitude: 1, Longitude: 2}}
	tel := domain.Event{Kind: domain.KindTelemetry, Telemetry: &domain.Telemetry{NodeID: "!a", Timestamp: time.Unix(100, 0)}}
	msg := domain.Event{Kind: domain.KindMessage, Message: &domain.Message{PacketID: 42}}

	for _, e := range []domain.Event{node, pos, tel, msg} {
		key, ok := dedupeKey(e)
		assert.True(t, ok, "kind %s should be deduplicated", e.Kind)
		assert.NotEmpty(t, key)
	}
}

func TestDedupeKeySkipsTracerouteAndMQTTRaw(t *testing.T) {
	tr := domain.Event{Kind: domain.KindTraceroute, Traceroute: &domain.Traceroute{FromID: "!a"}}
	raw := domain.Event{Kind: domain.KindMQTTRaw, MQTTRaw: &domain.MQTTRaw{NodeID: "!a"}}

	for _, e := range []domain.Event{tr, raw} {
		_, ok := dedupeKey(e)
		assert.False(t, ok, "kind %s should never be deduplicated", e.Kind)
	}
}

func TestSourceOfEachKind(t *testing.T) {
	cases := []struct {
		e    domain.Event
		want string
	}{
		{domain.Event{Kind: domain.KindNode, Node: &domain.Node{ID: "!a"}}, "!a"},
		{domain.Event{Kind: domain.KindPosition, Position: &domain.Position{NodeID: "!b"}}, "!b"},
		{domain.Event{Kind: domain.KindTelemetry, Telemetry: &domain.Telemetry{NodeID: "!c"}}, "!c"},
		{domain.Event{Kind: domain.KindMessage, Message: &domain.Message{FromID: "!d"}}, "!d"},
		{domain.Event{Kind: domain.KindTraceroute, Traceroute: &domain.Traceroute{FromID: "!e"}}, "!e"},
		{domain.Event{Kind: domain.KindMQTTRaw, MQTTRaw: &domain.MQTTRaw{NodeID: "!f"}}, "!f"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, sourceOf(tc.e))
	}
}

func TestPriorityOfTelemetryLowBattery(t *testing.T) {
	low := uint32(5)
	e := domain.Event{Kind: domain.KindTelemetry, Telemetry: &domain.Telemetry{BatteryLevel: &low}}
	assert.Equal(t, queue.Critical, priorityOf(e))
}

func TestPriorityOfTelemetryHighChannelUtil(t *testing.T) {
	util := float32(95)
	e := domain.Event{Kind: domain.KindTelemetry, Telemetry: &domain.Telemetry{ChannelUtilization: &util}}
	assert.Equal(t, queue.High, priorityOf(e))
}

func TestPriorityOfTelemetryDefault(t *testing.T) {
	e := domain.Event{Kind: domain.KindTelemetry, Telemetry: &domain.Telemetry{}}
	assert.Equal(t, queue.Normal, priorityOf(e))
}

func TestPriorityOfMessageBroadcastVsDirect(t *testing.T) {
	broadcast := domain.Event{Kind: domain.KindMessage, Message: &domain.Message{ToID: domain.BroadcastID}}
	direct := domain.Event{Kind: domain.KindMessage, Message: &domain.Message{ToID: "!a"}}

	assert.Equal(t, queue.Normal, priorityOf(broadcast))
	assert.Equal(t, queue.High, priorityOf(direct))
}

func TestPriorityOfNodeAndPosition(t *testing.T) {
	node := domain.Event{Kind: domain.KindNode, Node: &domain.Node{}}
	pos := domain.Event{Kind: domain.KindPosition, Position: &domain.Position{}}

	assert.Equal(t, queue.High, priorityOf(node))
	assert.Equal(t, queue.Normal, priorityOf(pos))
}
