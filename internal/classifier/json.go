// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classifier

import (
	"encoding/json"
	"time"

	"github.com/meshtastic/meshwatch/internal/domain"
	"github.com/meshtastic/meshwatch/internal/wire"
)

// channelTextPayload is the shape of a /c/... JSON delivery.
type channelTextPayload struct {
	From    uint32 `json:"from"`
	To      uint32 `json:"to"`
	Channel uint32 `json:"channel"`
	Text    string `json:"text"`
	Type    string `json:"type"`
}

func (c *Classifier) classifyChannelJSON(t Topic, payload []byte) []domain.Event {
	var p channelTextPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.warnf("channel JSON decode failed for topic %s: %v", t.Raw, err)
		return []domain.Event{c.rawDiagnostic(t, payload, "decode_error", "")}
	}
	if p.Text == "" {
		return nil
	}

	nodeID := domain.NodeIDFromNum(p.From)
	toID := domain.NodeIDFromNum(p.To)
	if p.To == domain.BroadcastNodeNum || p.To == 0 {
		toID = domain.BroadcastID
	}

	return []domain.Event{{
		Kind: domain.KindMessage,
		Message: &domain.Message{
			FromID:    nodeID,
			ToID:      toID,
			Channel:   p.Channel,
			Text:      p.Text,
			Timestamp: time.Now(),
		},
	}}
}

// statPayload is the shape of a /stat/... JSON device-stats delivery.
type statPayload struct {
	BatteryLevel       *uint32  `json:"battery_level"`
	Voltage            *float32 `json:"voltage"`
	ChannelUtilization *float32 `json:"channel_utilization"`
	AirUtilTx          *float32 `json:"air_util_tx"`
	Uptime             *uint32  `json:"uptime_seconds"`
}

func (c *Classifier) classifyStat(t Topic, payload []byte) []domain.Event {
	var p statPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.warnf("stat JSON decode failed for topic %s: %v", t.Raw, err)
		return []domain.Event{c.rawDiagnostic(t, payload, "decode_error", "")}
	}

	nodeID := t.GatewayID
	if nodeID == "" {
		return []domain.Event{c.rawDiagnostic(t, payload, "missing_gateway_id", "")}
	}

	return []domain.Event{{
		Kind: domain.KindTelemetry,
		Telemetry: &domain.Telemetry{
			NodeID:             nodeID,
			Timestamp:          time.Now(),
			BatteryLevel:       p.BatteryLevel,
			Voltage:            p.Voltage,
			ChannelUtilization: p.ChannelUtilization,
			AirUtilTx:          p.AirUtilTx,
			Uptime:             p.Uptime,
		},
	}}
}

// mapJSONPayload is the JSON-form shape of a /map/... delivery; the raw
// map-report binary form is handled via the wire decoder instead.
type mapJSONPayload struct {
	Latitude  *float64 `json:"lat"`
	Longitude *float64 `json:"lon"`
	NodeID    string   `json:"id"`
}

func (c *Classifier) classifyMap(t Topic, payload []byte) []domain.Event {
	var p mapJSONPayload
	if err := json.Unmarshal(payload, &p); err == nil && p.Latitude != nil && p.Longitude != nil {
		nodeID := p.NodeID
		if nodeID == "" {
			nodeID = t.GatewayID
		}
		return []domain.Event{{
			Kind: domain.KindPosition,
			Position: &domain.Position{
				NodeID:    nodeID,
				Latitude:  *p.Latitude,
				Longitude: *p.Longitude,
				Timestamp: time.Now(),
			},
		}}
	}

	// Not parseable JSON with lat/lon: may be a raw MapReport record
	// delivered on the same topic category. The record has no packet
	// wrapper on this topic, so node identity comes from the topic's
	// trailing gateway-id segment.
	return c.classifyRawMapReport(t, payload)
}

func (c *Classifier) classifyRawMapReport(t Topic, payload []byte) []domain.Event {
	mr, err := wire.DecodeMapReport(payload)
	if err != nil {
		c.warnf("map-report decode failed for topic %s: %v", t.Raw, err)
		return []domain.Event{c.rawDiagnostic(t, payload, "decode_error", "")}
	}
	if t.GatewayID == "" {
		return []domain.Event{c.rawDiagnostic(t, payload, "missing_gateway_id", "")}
	}

	node := &domain.Node{
		ID:        t.GatewayID,
		ShortName: mr.ShortName,
		LongName:  mr.LongName,
		HwModel:   mr.HwModel,
		Role:      mr.Role,
	}
	events := []domain.Event{{Kind: domain.KindNode, Node: node}}

	lat, lon := mr.Latitude(), mr.Longitude()
	if !(lat == 0 && lon == 0) {
		pos := &domain.Position{
			NodeID:    t.GatewayID,
			Latitude:  lat,
			Longitude: lon,
			Timestamp: time.Now(),
		}
		if mr.Altitude != 0 {
			alt := mr.Altitude
			pos.Altitude = &alt
		}
		events = append(events, domain.Event{Kind: domain.KindPosition, Position: pos})
	}
	return events
}

// jsonDiscriminated is the shape of a /json/... delivery: a `type`
// discriminant selects which of the other categories this resembles.
type jsonDiscriminated struct {
	Type string `json:"type"`
}

func (c *Classifier) classifyJSONDiscriminated(t Topic, payload []byte) []domain.Event {
	var p jsonDiscriminated
	if err := json.Unmarshal(payload, &p); err != nil {
		c.warnf("discriminated JSON decode failed for topic %s: %v", t.Raw, err)
		return []domain.Event{c.rawDiagnostic(t, payload, "decode_error", "")}
	}

	switch p.Type {
	case "text", "message":
		return c.classifyChannelJSON(t, payload)
	case "position", "map":
		return c.classifyMap(t, payload)
	case "telemetry", "stat":
		return c.classifyStat(t, payload)
	default:
		return []domain.Event{c.rawDiagnostic(t, payload, "unknown_json_type", "")}
	}
}
