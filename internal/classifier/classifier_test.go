// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshtastic/meshwatch/internal/crypto"
	"github.com/meshtastic/meshwatch/internal/domain"
	"github.com/meshtastic/meshwatch/internal/wire"
)

func TestParseTopicEnvelope(t *testing.T) {
	tp := ParseTopic("msh/US/2/e/LongFast/!abcdef00")
	assert.Equal(t, "msh", tp.Root)
	assert.Equal(t, "US", tp.Region)
	assert.Equal(t, CategoryEnvelope, tp.Category)
	assert.Equal(t, "LongFast", tp.ChannelName)
	assert.Equal(t, "!abcdef00", tp.GatewayID)
}

func TestParseTopicStat(t *testing.T) {
	tp := ParseTopic("msh/US/stat/!abcdef00")
	assert.Equal(t, CategoryStat, tp.Category)
	assert.Equal(t, "!abcdef00", tp.GatewayID)
}

func TestParseTopicJSONNested(t *testing.T) {
	tp := ParseTopic("msh/US/2/json/mqtt/!abcdef00")
	assert.Equal(t, CategoryJSON, tp.Category)
}

func buildEncryptedEnvelopeTopic(t *testing.T, from, to, id uint32, portnum wire.PortNum, payload []byte) []byte {
	t.Helper()
	data := &wire.Data{PortNum: portnum, Payload: payload}
	plaintext := wire.EncodeData(data)

	key, err := crypto.ExpandPSK([]byte{1})
	require.NoError(t, err)
	nonce := crypto.Nonce(uint64(id), from)
	ct, err := crypto.Transform(key, nonce, plaintext)
	require.NoError(t, err)

	pkt := &wire.Packet{From: from, To: to, ID: id, Encrypted: ct}
	env := &wire.Envelope{Packet: pkt, ChannelID: "LongFast"}
	return wire.EncodeEnvelope(env)
}

func TestClassifyDefaultChannelTextBroadcast(t *testing.T) {
	payload := buildEncryptedEnvelopeTopic(t, 0x298A814D, domain.BroadcastNodeNum, 0x00123456, wire.PortTextMessage, []byte("Hello"))

	c := New(nil, NewMemoryChannelIndex(nil, nil))
	events := c.Classify("msh/US/2/e/LongFast/!abcdef00", payload)

	require.Len(t, events, 1)
	require.Equal(t, domain.KindMessage, events[0].Kind)
	msg := events[0].Message
	assert.Equal(t, "!298a814d", msg.FromID)
	assert.Equal(t, domain.BroadcastID, msg.ToID)
	assert.Equal(t, "Hello", msg.Text)
	assert.Equal(t, uint32(0x00123456), msg.PacketID)
}

func TestClassifyPositionOnFreshNode(t *testing.T) {
	pos := &wire.Position{LatitudeI: 377780208, LongitudeI: -1224400000, Altitude: 42, HasAltitude: true, Time: 1700000000}
	payload := buildEncryptedEnvelopeTopic(t, 0x01020304, domain.BroadcastNodeNum, 1, wire.PortPosition, wire.EncodePosition(pos))

	c := New(nil, NewMemoryChannelIndex(nil, nil))
	events := c.Classify("msh/US/2/e/LongFast/!01020304", payload)

	require.Len(t, events, 1)
	require.Equal(t, domain.KindPosition, events[0].Kind)
	p := events[0].Position
	assert.Equal(t, "!01020304", p.NodeID)
	assert.InDelta(t, 37.7780208, p.Latitude, 1e-6)
	assert.InDelta(t, -122.44, p.Longitude, 1e-6)
}

func TestClassifyUnresolvableEncryptionProducesRawDiagnostic(t *testing.T) {
	pkt := &wire.Packet{From: 1, To: 2, ID: 3, Encrypted: []byte{1, 2, 3, 4, 5, 6, 7, 8}}
	env := &wire.Envelope{Packet: pkt, ChannelID: "SomeOtherChannel"}
	payload := wire.EncodeEnvelope(env)

	c := New(map[string]string{"Wrong": "notthekey0123456"}, NewMemoryChannelIndex(nil, nil))
	events := c.Classify("msh/US/2/e/SomeOtherChannel/!gw", payload)

	require.Len(t, events, 1)
	assert.Equal(t, domain.KindMQTTRaw, events[0].Kind)
}

func TestClassifyChannelJSON(t *testing.T) {
	c := New(nil, NewMemoryChannelIndex(nil, nil))
	events := c.Classify("msh/US/c/LongFast", []byte(`{"from":1,"to":4294967295,"channel":0,"text":"hi"}`))
	require.Len(t, events, 1)
	assert.Equal(t, domain.KindMessage, events[0].Kind)
	assert.Equal(t, "hi", events[0].Message.Text)
}

func TestClassifyStatJSON(t *testing.T) {
	c := New(nil, NewMemoryChannelIndex(nil, nil))
	events := c.Classify("msh/US/stat/!abcdef00", []byte(`{"battery_level":80}`))
	require.Len(t, events, 1)
	assert.Equal(t, domain.KindTelemetry, events[0].Kind)
	assert.Equal(t, "!abcdef00", events[0].Telemetry.NodeID)
}

func TestChannelIndexAssignsNextFreeSlot(t *testing.T) {
	idx := NewMemoryChannelIndex(map[string]uint8{"LongFast": 0}, nil)
	got, err := idx.Index("Admin")
	require.NoError(t, err)
	assert.Equal(t, uint8(1), got)

	got2, err := idx.Index("LongFast")
	require.NoError(t, err)
	assert.Equal(t, uint8(0), got2)
}
