// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package domain holds the typed events the classifier produces and the
// writer/broadcaster consume, independent of both the wire format they
// were decoded from and the schema they will be persisted to.
package domain

import "time"

// Kind discriminates the domain event variants.
type Kind string

const (
	KindNode       Kind = "node"
	KindPosition   Kind = "position"
	KindTelemetry  Kind = "telemetry"
	KindMessage    Kind = "message"
	KindTraceroute Kind = "traceroute"
	KindMQTTRaw    Kind = "mqtt_raw"
)

// Node is an identity refresh for a mesh node.
type Node struct {
	ID        string
	NodeNum   uint32
	ShortName string
	LongName  string
	HwModel   uint32
	Role      uint32
	SNR       float32
	RSSI      int32
	HopsAway  uint32
	Stub      bool
}

// Position is a GPS fix.
type Position struct {
	NodeID        string
	NodeNum       uint32
	Latitude      float64
	Longitude     float64
	Altitude      *int32
	PrecisionBits *uint32
	Timestamp     time.Time
	SNR           float32
	RSSI          int32
}

// Telemetry is a device-health reading.
type Telemetry struct {
	NodeID             string
	NodeNum            uint32
	Timestamp          time.Time
	BatteryLevel       *uint32
	Voltage            *float32
	ChannelUtilization *float32
	AirUtilTx          *float32
	Uptime             *uint32
	Temperature        *float32
	SNR                *float32
	RSSI               *int32
}

// Message is a text message.
type Message struct {
	PacketID  uint32
	FromID    string
	ToID      string
	Channel   uint32
	Text      string
	Timestamp time.Time
	SNR       float32
	RSSI      int32
	HopsAway  uint32
	ReplyTo   *uint32
}

// Traceroute is a completed or in-flight route discovery.
type Traceroute struct {
	FromID     string
	ToID       string
	Timestamp  time.Time
	Route      []uint32
	RouteBack  []uint32
	SNRTowards []int32
	SNRBack    []int32
	Success    bool
	LatencyMs  *int64
}

// MQTTRaw is the diagnostic event emitted when classification fails;
// surfaced to the broadcaster for visibility only, never persisted.
type MQTTRaw struct {
	Topic      string
	PayloadB64 string
	ParsedType string
	NodeID     string
	Timestamp  time.Time
}

// Event is a tagged union over the domain variants, attached to an
// opaque queue id by the dedupe stage.
type Event struct {
	QueueID string
	Kind    Kind

	Node       *Node
	Position   *Position
	Telemetry  *Telemetry
	Message    *Message
	Traceroute *Traceroute
	MQTTRaw    *MQTTRaw
}

// NodeIDFromNum formats a node number as the canonical "!xxxxxxxx" id.
func NodeIDFromNum(num uint32) string {
	const hex = "0123456789abcdef"
	b := [9]byte{'!'}
	for i := 7; i >= 0; i-- {
		b[1+7-i] = hex[(num>>(uint(i)*4))&0xf]
	}
	return string(b[:])
}

// BroadcastID is the well-known "everyone" destination marker.
const BroadcastID = "broadcast"

// BroadcastNodeNum is the wire value meaning "no specific destination".
const BroadcastNodeNum = 0xFFFFFFFF
