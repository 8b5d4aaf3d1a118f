// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classifier

import (
	"time"

	"github.com/meshtastic/meshwatch/internal/domain"
	"github.com/meshtastic/meshwatch/internal/wire"
)

func textMessageEvent(nodeID string, pkt *wire.Packet, data *wire.Data) *domain.Message {
	toID := domain.NodeIDFromNum(pkt.To)
	if pkt.To == domain.BroadcastNodeNum {
		toID = domain.BroadcastID
	}

	var replyTo *uint32
	if data.ReplyID != 0 {
		id := data.ReplyID
		replyTo = &id
	}

	return &domain.Message{
		PacketID:  pkt.ID,
		FromID:    nodeID,
		ToID:      toID,
		Channel:   pkt.Channel,
		Text:      string(data.Payload),
		Timestamp: time.Now(),
		SNR:       pkt.RxSnr,
		RSSI:      pkt.RxRssi,
		ReplyTo:   replyTo,
	}
}

// positionEvent converts a wire Position to a domain event, applying the
// "both zero and no altitude means unknown" rejection rule.
func positionEvent(nodeID string, pkt *wire.Packet, pos *wire.Position) (*domain.Position, bool) {
	lat := pos.Latitude()
	lon := pos.Longitude()
	if lat == 0 && lon == 0 && !pos.HasAltitude {
		return nil, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, false
	}

	ev := &domain.Position{
		NodeID:    nodeID,
		NodeNum:   pkt.From,
		Latitude:  lat,
		Longitude: lon,
		Timestamp: time.Now(),
		SNR:       pkt.RxSnr,
		RSSI:      pkt.RxRssi,
	}
	if pos.HasAltitude {
		alt := pos.Altitude
		ev.Altitude = &alt
	}
	if pos.HasPrecision {
		pb := pos.PrecisionBits
		ev.PrecisionBits = &pb
	}
	return ev, true
}

func nodeEvent(nodeID string, pkt *wire.Packet, u *wire.User) *domain.Node {
	return &domain.Node{
		ID:        nodeID,
		NodeNum:   pkt.From,
		ShortName: u.ShortName,
		LongName:  u.LongName,
		HwModel:   u.HwModel,
		Role:      u.Role,
		SNR:       pkt.RxSnr,
		RSSI:      pkt.RxRssi,
	}
}

func telemetryEvent(nodeID string, pkt *wire.Packet, tel *wire.Telemetry) *domain.Telemetry {
	ev := &domain.Telemetry{
		NodeID:    nodeID,
		NodeNum:   pkt.From,
		Timestamp: time.Now(),
	}
	if tel.Time != 0 {
		ev.Timestamp = time.Unix(int64(tel.Time), 0)
	}

	dm := tel.Metrics
	if dm.HasBatteryLevel {
		b := dm.BatteryLevel
		ev.BatteryLevel = &b
	}
	voltage := dm.Voltage
	ev.Voltage = &voltage
	util := dm.ChannelUtilization
	ev.ChannelUtilization = &util
	air := dm.AirUtilTx
	ev.AirUtilTx = &air
	if dm.UptimeSeconds != 0 {
		u := dm.UptimeSeconds
		ev.Uptime = &u
	}
	snr := pkt.RxSnr
	ev.SNR = &snr
	rssi := pkt.RxRssi
	ev.RSSI = &rssi
	return ev
}

func tracerouteEvent(nodeID string, pkt *wire.Packet, data *wire.Data, rd *wire.RouteDiscovery) *domain.Traceroute {
	toID := domain.NodeIDFromNum(pkt.To)
	success := data.ReplyID != 0 || len(rd.RouteBack) > 0

	return &domain.Traceroute{
		FromID:     nodeID,
		ToID:       toID,
		Timestamp:  time.Now(),
		Route:      rd.Route,
		RouteBack:  rd.RouteBack,
		SNRTowards: rd.SnrTowards,
		SNRBack:    rd.SnrBack,
		Success:    success,
	}
}

// mapReportEvents splits a MapReport into the Node + Position pair it
// represents.
func mapReportEvents(nodeID string, pkt *wire.Packet, mr *wire.MapReport) []domain.Event {
	node := &domain.Node{
		ID:        nodeID,
		NodeNum:   pkt.From,
		ShortName: mr.ShortName,
		LongName:  mr.LongName,
		HwModel:   mr.HwModel,
		Role:      mr.Role,
	}

	events := []domain.Event{{Kind: domain.KindNode, Node: node}}

	lat, lon := mr.Latitude(), mr.Longitude()
	if !(lat == 0 && lon == 0) {
		pos := &domain.Position{
			NodeID:    nodeID,
			NodeNum:   pkt.From,
			Latitude:  lat,
			Longitude: lon,
			Timestamp: time.Now(),
		}
		if mr.Altitude != 0 {
			alt := mr.Altitude
			pos.Altitude = &alt
		}
		if mr.PositionPrecision != 0 {
			pb := mr.PositionPrecision
			pos.PrecisionBits = &pb
		}
		events = append(events, domain.Event{Kind: domain.KindPosition, Position: pos})
	}

	return events
}
