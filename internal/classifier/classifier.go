// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classifier

import (
	"encoding/base64"
	"time"

	"golang.org/x/time/rate"

	"github.com/meshtastic/meshwatch/internal/crypto"
	"github.com/meshtastic/meshwatch/internal/domain"
	"github.com/meshtastic/meshwatch/internal/log"
	"github.com/meshtastic/meshwatch/internal/wire"
)

// Classifier turns a raw (topic, payload) broker delivery into zero or
// more typed domain events.
type Classifier struct {
	channelKeys map[string]string
	channels    ChannelIndexer

	// decodeWarn throttles repeated structural-decode/crypto warnings so
	// a flood of malformed packets from one bad node doesn't spam the
	// log at line rate.
	decodeWarn rate.Sometimes
}

// New returns a Classifier using channelKeys (operator-supplied PSKs by
// channel name) and channels for name→index learning.
func New(channelKeys map[string]string, channels ChannelIndexer) *Classifier {
	return &Classifier{
		channelKeys: channelKeys,
		channels:    channels,
		decodeWarn:  rate.Sometimes{Interval: 10 * time.Second},
	}
}

// Classify routes one broker delivery. It never returns a propagating
// error for single-message decode/crypto/semantic failures — those are
// folded into an `mqtt_raw` diagnostic event instead, per the
// classifier's drop-and-count policy.
func (c *Classifier) Classify(topic string, payload []byte) []domain.Event {
	t := ParseTopic(topic)

	switch t.Category {
	case CategoryEnvelope:
		return c.classifyEnvelope(t, payload)
	case CategoryChannel:
		return c.classifyChannelJSON(t, payload)
	case CategoryStat:
		return c.classifyStat(t, payload)
	case CategoryMap:
		return c.classifyMap(t, payload)
	case CategoryJSON:
		return c.classifyJSONDiscriminated(t, payload)
	default:
		return []domain.Event{c.rawDiagnostic(t, payload, "unrecognized_topic", "")}
	}
}

func (c *Classifier) classifyEnvelope(t Topic, payload []byte) []domain.Event {
	env, err := wire.DecodeEnvelope(payload)
	if err != nil {
		c.warnf("envelope decode failed for topic %s: %v", t.Raw, err)
		return []domain.Event{c.rawDiagnostic(t, payload, "decode_error", "")}
	}
	if env.Packet == nil {
		return []domain.Event{c.rawDiagnostic(t, payload, "empty_envelope", "")}
	}

	channelName := env.ChannelID
	if channelName == "" {
		channelName = t.ChannelName
	}
	c.resolveChannel(channelName)

	return c.classifyPacket(t, env, payload)
}

func (c *Classifier) classifyPacket(t Topic, env *wire.Envelope, raw []byte) []domain.Event {
	pkt := env.Packet
	nodeID := domain.NodeIDFromNum(pkt.From)

	data := pkt.Decoded
	if data == nil && len(pkt.Encrypted) > 0 {
		channelName := env.ChannelID
		if channelName == "" {
			channelName = t.ChannelName
		}
		plaintext, ok := c.tryDecrypt(channelName, pkt)
		if !ok {
			return []domain.Event{c.rawDiagnostic(t, raw, "encrypted_unresolved", nodeID)}
		}
		d, err := wire.DecodeData(plaintext)
		if err != nil {
			c.warnf("data decode failed after decrypt for topic %s: %v", t.Raw, err)
			return []domain.Event{c.rawDiagnostic(t, raw, "decode_error", nodeID)}
		}
		data = d
	}
	if data == nil {
		// Neither branch present: decodes fine, no domain event.
		return nil
	}

	return c.dispatchData(nodeID, pkt, data)
}

func (c *Classifier) tryDecrypt(channelName string, pkt *wire.Packet) ([]byte, bool) {
	candidates, err := crypto.Candidates(channelName, c.channelKeys)
	if err != nil {
		c.warnf("key candidate derivation failed for channel %s: %v", channelName, err)
		return nil, false
	}
	nonce := crypto.Nonce(uint64(pkt.ID), pkt.From)
	for _, cand := range candidates {
		pt, err := crypto.Transform(cand.Key, nonce, pkt.Encrypted)
		if err != nil {
			continue
		}
		if crypto.LooksLikeRecord(pt) {
			return pt, true
		}
	}
	return nil, false
}

func (c *Classifier) dispatchData(nodeID string, pkt *wire.Packet, data *wire.Data) []domain.Event {
	switch data.PortNum {
	case wire.PortTextMessage:
		return []domain.Event{{Kind: domain.KindMessage, Message: textMessageEvent(nodeID, pkt, data)}}

	case wire.PortPosition:
		pos, err := wire.DecodePosition(data.Payload)
		if err != nil {
			c.warnf("position decode failed: %v", err)
			return nil
		}
		ev, ok := positionEvent(nodeID, pkt, pos)
		if !ok {
			return nil
		}
		return []domain.Event{{Kind: domain.KindPosition, Position: ev}}

	case wire.PortNodeInfo:
		u, err := wire.DecodeUser(data.Payload)
		if err != nil {
			c.warnf("user decode failed: %v", err)
			return nil
		}
		return []domain.Event{{Kind: domain.KindNode, Node: nodeEvent(nodeID, pkt, u)}}

	case wire.PortTelemetry:
		tel, err := wire.DecodeTelemetry(data.Payload)
		if err != nil {
			c.warnf("telemetry decode failed: %v", err)
			return nil
		}
		if tel.Metrics == nil {
			return nil
		}
		return []domain.Event{{Kind: domain.KindTelemetry, Telemetry: telemetryEvent(nodeID, pkt, tel)}}

	case wire.PortTraceroute:
		rd, err := wire.DecodeRouteDiscovery(data.Payload)
		if err != nil {
			c.warnf("traceroute decode failed: %v", err)
			return nil
		}
		return []domain.Event{{Kind: domain.KindTraceroute, Traceroute: tracerouteEvent(nodeID, pkt, data, rd)}}

	case wire.PortMapReport:
		mr, err := wire.DecodeMapReport(data.Payload)
		if err != nil {
			c.warnf("map-report decode failed: %v", err)
			return nil
		}
		return mapReportEvents(nodeID, pkt, mr)

	default:
		return nil
	}
}

func (c *Classifier) rawDiagnostic(t Topic, payload []byte, reason, nodeID string) domain.Event {
	return domain.Event{
		Kind: domain.KindMQTTRaw,
		MQTTRaw: &domain.MQTTRaw{
			Topic:      t.Raw,
			PayloadB64: base64.StdEncoding.EncodeToString(payload),
			ParsedType: reason,
			NodeID:     nodeID,
			Timestamp:  time.Now(),
		},
	}
}

func (c *Classifier) warnf(format string, args ...any) {
	c.decodeWarn.Do(func() {
		log.Warnf(format, args...)
	})
}

// resolveChannel learns t.ChannelName via the ChannelIndexer, ignoring
// errors from the persistence callback (logged, not fatal — a failed
// persist just means the mapping is relearned at next restart).
func (c *Classifier) resolveChannel(name string) uint8 {
	if name == "" || c.channels == nil {
		return 0
	}
	idx, err := c.channels.Index(name)
	if err != nil {
		c.warnf("channel index persist failed for %s: %v", name, err)
		return 0
	}
	return idx
}
