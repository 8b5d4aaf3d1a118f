// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fanout

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/meshtastic/meshwatch/internal/domain"
	"github.com/meshtastic/meshwatch/internal/log"
	"github.com/meshtastic/meshwatch/internal/storage"
)

// Config holds the broadcaster's tunables, sourced from the top-level
// configuration.
type Config struct {
	HeartbeatInterval time.Duration
	CoalesceWindow    time.Duration
	SnapshotNodeCap   int
	SnapshotPosCap    int
	SnapshotMsgCap    int
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.CoalesceWindow <= 0 {
		c.CoalesceWindow = 250 * time.Millisecond
	}
	if c.SnapshotNodeCap <= 0 {
		c.SnapshotNodeCap = 200
	}
	if c.SnapshotPosCap <= 0 {
		c.SnapshotPosCap = 200
	}
	if c.SnapshotMsgCap <= 0 {
		c.SnapshotMsgCap = 100
	}
	return c
}

// Broadcaster maintains every connected dashboard session and fans
// ingestion events out to the ones whose filter admits them.
type Broadcaster struct {
	cfg      Config
	reader   *storage.Reader
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*session

	incoming chan domain.Event
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewBroadcaster wires a Broadcaster against reader for snapshot
// queries. Any Origin is accepted on upgrade — this is a LAN-facing
// dashboard service, not a public multi-tenant one.
func NewBroadcaster(reader *storage.Reader, cfg Config) *Broadcaster {
	return &Broadcaster{
		cfg:    cfg.withDefaults(),
		reader: reader,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*session),
		incoming: make(chan domain.Event, 4096),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// RegisterRoutes mounts the websocket endpoint on router.
func (b *Broadcaster) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", b.handleWS)
}

// Publish hands e to the coalescing loop without blocking; ingestion
// never waits on a slow broadcaster.
func (b *Broadcaster) Publish(e domain.Event) {
	select {
	case b.incoming <- e:
	default:
		log.Warnf("fanout: incoming buffer full, dropping %s event", e.Kind)
	}
}

// Run drives the coalesce-and-flush loop and the heartbeat loop until
// Stop is called.
func (b *Broadcaster) Run() {
	defer close(b.doneCh)

	flushTicker := time.NewTicker(b.cfg.CoalesceWindow)
	defer flushTicker.Stop()
	heartbeatTicker := time.NewTicker(b.cfg.HeartbeatInterval)
	defer heartbeatTicker.Stop()

	var pending []domain.Event

	for {
		select {
		case e := <-b.incoming:
			pending = append(pending, e)

		case <-flushTicker.C:
			if len(pending) > 0 {
				b.flush(pending)
				pending = nil
			}

		case <-heartbeatTicker.C:
			b.heartbeat()

		case <-b.stopCh:
			if len(pending) > 0 {
				b.flush(pending)
			}
			return
		}
	}
}

// Stop signals Run to exit and sends an explicit disconnect frame to
// every session before closing their connections.
func (b *Broadcaster) Stop() {
	close(b.stopCh)
	<-b.doneCh

	b.mu.Lock()
	sessions := make([]*session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.sessions = make(map[string]*session)
	b.mu.Unlock()

	for _, s := range sessions {
		s.close("shutdown")
	}
}

// flush groups pending into per-kind batches and, per session, filters
// each batch down to the events that session's filter admits before
// marshaling a single array-valued update frame for that kind — so a
// typed update frame carries every same-kind event coalesced over the
// flush window, not one frame per event.
func (b *Broadcaster) flush(events []domain.Event) {
	grouped := make(map[domain.Kind][]domain.Event, len(coalescableKinds))
	for _, e := range events {
		switch e.Kind {
		case domain.KindNode, domain.KindPosition, domain.KindTelemetry, domain.KindMessage, domain.KindMQTTRaw:
			grouped[e.Kind] = append(grouped[e.Kind], e)
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.sessions {
		if !b.flushToSession(s, grouped) {
			go b.drop(s, "slow-consumer")
		}
	}
}

func (b *Broadcaster) flushToSession(s *session, grouped map[domain.Kind][]domain.Event) bool {
	for _, kind := range coalescableKinds {
		batch := grouped[kind]
		if len(batch) == 0 {
			continue
		}

		admitted := make([]domain.Event, 0, len(batch))
		for _, e := range batch {
			if s.filter.Admits(e) {
				admitted = append(admitted, e)
			}
		}
		if len(admitted) == 0 {
			continue
		}

		f, err := kindFrame(kind, admitted)
		if err != nil {
			log.Warnf("fanout: marshal %s update frame: %v", kind, err)
			continue
		}
		if !s.enqueue(f) {
			return false
		}
	}
	return true
}

func (b *Broadcaster) heartbeat() {
	msg, err := pongFrame()
	if err != nil {
		return
	}

	b.mu.RLock()
	stale := make([]*session, 0)
	for _, s := range b.sessions {
		if s.idleFor() > 2*b.cfg.HeartbeatInterval {
			stale = append(stale, s)
			continue
		}
		if !s.enqueue(msg) {
			stale = append(stale, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range stale {
		b.drop(s, "heartbeat-timeout")
	}
}

// drop removes a session from the registry and closes its connection.
func (b *Broadcaster) drop(s *session, reason string) {
	b.mu.Lock()
	delete(b.sessions, s.id)
	b.mu.Unlock()
	s.close(reason)
}

func (b *Broadcaster) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("fanout: upgrade failed: %v", err)
		return
	}

	id := uuid.NewString()
	filter := ParseFilter(r.URL.Query())
	s := newSession(id, conn, filter)

	b.mu.Lock()
	b.sessions[id] = s
	b.mu.Unlock()

	log.Infof("fanout: session %s connected", id)

	go s.writePump()
	b.sendConnected(s)
	b.sendSnapshot(s)
	b.readPump(s)
}

func (b *Broadcaster) sendConnected(s *session) {
	msg, err := connectedFrame(s.id)
	if err != nil {
		return
	}
	s.enqueue(msg)
}

func (b *Broadcaster) sendSnapshot(s *session) {
	nodes, err := b.reader.RecentNodes(b.cfg.SnapshotNodeCap)
	if err != nil {
		log.Warnf("fanout: snapshot nodes query failed: %v", err)
	}
	positions, err := b.reader.RecentPositions(b.cfg.SnapshotPosCap)
	if err != nil {
		log.Warnf("fanout: snapshot positions query failed: %v", err)
	}
	messages, err := b.reader.RecentMessages(b.cfg.SnapshotMsgCap)
	if err != nil {
		log.Warnf("fanout: snapshot messages query failed: %v", err)
	}

	msg, err := snapshotFrame(nodes, positions, messages)
	if err != nil {
		log.Warnf("fanout: marshal snapshot: %v", err)
		return
	}
	s.enqueue(msg)
}

// readPump drains inbound client traffic: any frame resets the idle
// clock, and "request_snapshot" triggers a fresh snapshot push. The
// loop exits (and the session is dropped) when the client disconnects.
func (b *Broadcaster) readPump(s *session) {
	defer b.drop(s, "client-disconnect")

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.touchPong()

		if string(data) == "request_snapshot" {
			b.sendSnapshot(s)
		}
	}
}

// SessionCount reports the number of currently connected sessions.
func (b *Broadcaster) SessionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}
