// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fanout pushes live mesh events to connected dashboard
// clients over a websocket, one long-lived session per connection.
package fanout

import (
	"encoding/json"
	"time"

	"github.com/meshtastic/meshwatch/internal/domain"
)

// FrameType discriminates the JSON frames sent to clients.
type FrameType string

const (
	FrameConnected       FrameType = "connected"
	FramePong            FrameType = "pong"
	FrameSnapshot        FrameType = "snapshot"
	FrameNodeUpdate      FrameType = "node_update"
	FramePositionUpdate  FrameType = "position_update"
	FrameTelemetryUpdate FrameType = "telemetry_update"
	FrameMessage         FrameType = "message"
	FrameMQTTRaw         FrameType = "mqtt_raw"
)

// mqttRawPacket is the wire shape of one entry in a mqtt_raw frame's
// packets array.
type mqttRawPacket struct {
	Topic      string `json:"topic"`
	PayloadB64 string `json:"payload_b64"`
	ParsedType string `json:"parsedType"`
	NodeID     string `json:"nodeId,omitempty"`
}

// frame is the wire shape every outbound message shares: a mandatory
// type discriminator, a timestamp, and the array-valued payload field
// for whichever update kind Type names. No compression is applied for
// browser compatibility.
type frame struct {
	Type      FrameType `json:"type"`
	Timestamp int64     `json:"timestamp"`

	SessionID string `json:"session_id,omitempty"`

	Data *snapshotData `json:"data,omitempty"`

	Nodes     []domain.Node      `json:"nodes,omitempty"`
	Positions []domain.Position  `json:"positions,omitempty"`
	Telemetry []domain.Telemetry `json:"telemetry,omitempty"`
	Messages  []domain.Message   `json:"messages,omitempty"`
	Packets   []mqttRawPacket    `json:"packets,omitempty"`
}

// snapshotData is the "data" payload of a snapshot frame.
type snapshotData struct {
	Nodes          []domain.Node     `json:"nodes"`
	Positions      []domain.Position `json:"positions"`
	RecentMessages []domain.Message  `json:"recentMessages"`
}

func now() int64 { return time.Now().UnixMilli() }

func marshalFrame(f frame) ([]byte, error) {
	f.Timestamp = now()
	return json.Marshal(f)
}

func connectedFrame(sessionID string) ([]byte, error) {
	return marshalFrame(frame{Type: FrameConnected, SessionID: sessionID})
}

func pongFrame() ([]byte, error) {
	return marshalFrame(frame{Type: FramePong})
}

func snapshotFrame(nodes []domain.Node, positions []domain.Position, messages []domain.Message) ([]byte, error) {
	return marshalFrame(frame{
		Type: FrameSnapshot,
		Data: &snapshotData{
			Nodes:          nodes,
			Positions:      positions,
			RecentMessages: messages,
		},
	})
}

// kindFrame renders a same-kind batch of events as its corresponding
// typed update frame (an array-valued payload, per the coalescing
// contract), or nil if the kind has no wire representation — traceroute
// events are deliberately not broadcast.
func kindFrame(kind domain.Kind, events []domain.Event) ([]byte, error) {
	switch kind {
	case domain.KindNode:
		nodes := make([]domain.Node, 0, len(events))
		for _, e := range events {
			if e.Node != nil {
				nodes = append(nodes, *e.Node)
			}
		}
		return marshalFrame(frame{Type: FrameNodeUpdate, Nodes: nodes})

	case domain.KindPosition:
		positions := make([]domain.Position, 0, len(events))
		for _, e := range events {
			if e.Position != nil {
				positions = append(positions, *e.Position)
			}
		}
		return marshalFrame(frame{Type: FramePositionUpdate, Positions: positions})

	case domain.KindTelemetry:
		telemetry := make([]domain.Telemetry, 0, len(events))
		for _, e := range events {
			if e.Telemetry != nil {
				telemetry = append(telemetry, *e.Telemetry)
			}
		}
		return marshalFrame(frame{Type: FrameTelemetryUpdate, Telemetry: telemetry})

	case domain.KindMessage:
		messages := make([]domain.Message, 0, len(events))
		for _, e := range events {
			if e.Message != nil {
				messages = append(messages, *e.Message)
			}
		}
		return marshalFrame(frame{Type: FrameMessage, Messages: messages})

	case domain.KindMQTTRaw:
		packets := make([]mqttRawPacket, 0, len(events))
		for _, e := range events {
			if e.MQTTRaw != nil {
				packets = append(packets, mqttRawPacket{
					Topic:      e.MQTTRaw.Topic,
					PayloadB64: e.MQTTRaw.PayloadB64,
					ParsedType: e.MQTTRaw.ParsedType,
					NodeID:     e.MQTTRaw.NodeID,
				})
			}
		}
		return marshalFrame(frame{Type: FrameMQTTRaw, Packets: packets})

	default:
		return nil, nil
	}
}

// coalescableKinds lists the event kinds that fan out to clients, in
// the fixed order frames are emitted within one flush.
var coalescableKinds = []domain.Kind{
	domain.KindNode,
	domain.KindPosition,
	domain.KindTelemetry,
	domain.KindMessage,
	domain.KindMQTTRaw,
}
