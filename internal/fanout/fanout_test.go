// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fanout

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/meshtastic/meshwatch/internal/domain"
)

func TestParseFilterEmptyQueryIsNil(t *testing.T) {
	if f := ParseFilter(url.Values{}); f != nil {
		t.Fatalf("expected nil filter for empty query, got %+v", f)
	}
}

func TestParseFilterKindsRestrict(t *testing.T) {
	q := url.Values{"kind": {"position", "telemetry"}}
	f := ParseFilter(q)
	if f == nil {
		t.Fatal("expected non-nil filter")
	}

	admitted := f.Admits(domain.Event{Kind: domain.KindPosition, Position: &domain.Position{}})
	rejected := f.Admits(domain.Event{Kind: domain.KindMessage, Message: &domain.Message{}})
	if !admitted {
		t.Error("expected position event to be admitted")
	}
	if rejected {
		t.Error("expected message event to be rejected")
	}
}

func TestFilterNodeIDRestriction(t *testing.T) {
	f := &Filter{NodeIDs: map[string]bool{"!aabbccdd": true}}

	admitted := f.Admits(domain.Event{Kind: domain.KindNode, Node: &domain.Node{ID: "!aabbccdd"}})
	rejected := f.Admits(domain.Event{Kind: domain.KindNode, Node: &domain.Node{ID: "!11112222"}})
	if !admitted {
		t.Error("expected matching node id to be admitted")
	}
	if rejected {
		t.Error("expected non-matching node id to be rejected")
	}
}

func TestNilFilterAdmitsEverything(t *testing.T) {
	var f *Filter
	if !f.Admits(domain.Event{Kind: domain.KindMQTTRaw, MQTTRaw: &domain.MQTTRaw{}}) {
		t.Fatal("expected nil filter to admit everything")
	}
}

func TestKindFrameCoalescesPositionsIntoArray(t *testing.T) {
	events := []domain.Event{
		{Kind: domain.KindPosition, Position: &domain.Position{NodeID: "!deadbeef", Latitude: 51.5, Longitude: -0.1}},
		{Kind: domain.KindPosition, Position: &domain.Position{NodeID: "!cafebabe", Latitude: 1, Longitude: 2}},
	}

	raw, err := kindFrame(domain.KindPosition, events)
	if err != nil {
		t.Fatalf("kindFrame: %v", err)
	}

	var decoded struct {
		Type      string `json:"type"`
		Positions []struct {
			NodeID string `json:"NodeID"`
		} `json:"positions"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != string(FramePositionUpdate) {
		t.Fatalf("expected type %q, got %q", FramePositionUpdate, decoded.Type)
	}
	if len(decoded.Positions) != 2 {
		t.Fatalf("expected 2 coalesced positions, got %d", len(decoded.Positions))
	}
}

func TestKindFrameMQTTRawProducesPacketsArray(t *testing.T) {
	events := []domain.Event{
		{Kind: domain.KindMQTTRaw, MQTTRaw: &domain.MQTTRaw{Topic: "msh/US/2/e/LongFast/!a", PayloadB64: "YQ==", ParsedType: "unknown", NodeID: "!a"}},
	}

	raw, err := kindFrame(domain.KindMQTTRaw, events)
	if err != nil {
		t.Fatalf("kindFrame: %v", err)
	}

	var decoded struct {
		Type    string `json:"type"`
		Packets []struct {
			Topic      string `json:"topic"`
			PayloadB64 string `json:"payload_b64"`
			ParsedType string `json:"parsedType"`
			NodeID     string `json:"nodeId"`
		} `json:"packets"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != string(FrameMQTTRaw) {
		t.Fatalf("expected type %q, got %q", FrameMQTTRaw, decoded.Type)
	}
	if len(decoded.Packets) != 1 || decoded.Packets[0].Topic != "msh/US/2/e/LongFast/!a" {
		t.Fatalf("expected one packet with the source topic, got %+v", decoded.Packets)
	}
}

func TestSnapshotFrameIncludesAllSections(t *testing.T) {
	raw, err := snapshotFrame(
		[]domain.Node{{ID: "!1"}},
		[]domain.Position{{NodeID: "!1"}},
		[]domain.Message{{FromID: "!1"}},
	)
	if err != nil {
		t.Fatalf("snapshotFrame: %v", err)
	}

	var decoded struct {
		Type string `json:"type"`
		Data struct {
			Nodes          []domain.Node     `json:"nodes"`
			Positions      []domain.Position `json:"positions"`
			RecentMessages []domain.Message  `json:"recentMessages"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != string(FrameSnapshot) {
		t.Fatalf("expected type %q, got %q", FrameSnapshot, decoded.Type)
	}
	if len(decoded.Data.Nodes) != 1 || len(decoded.Data.Positions) != 1 || len(decoded.Data.RecentMessages) != 1 {
		t.Fatalf("expected one entry per section, got %+v", decoded.Data)
	}
}

func TestSessionEnqueueRejectsOverCapacity(t *testing.T) {
	s := newSession("test", nil, nil)
	big := make([]byte, maxOutboundBytes+1)
	if s.enqueue(big) {
		t.Fatal("expected oversized message to be rejected")
	}
}

func TestSessionEnqueueAcceptsWithinCapacity(t *testing.T) {
	s := newSession("test", nil, nil)
	if !s.enqueue([]byte("hello")) {
		t.Fatal("expected small message to be accepted")
	}
}
