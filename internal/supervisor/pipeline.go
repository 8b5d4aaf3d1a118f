// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package supervisor

import (
	"time"

	"github.com/meshtastic/meshwatch/internal/domain"
	"github.com/meshtastic/meshwatch/internal/ingest"
	"github.com/meshtastic/meshwatch/internal/log"
	"github.com/meshtastic/meshwatch/internal/metrics"
	"github.com/meshtastic/meshwatch/internal/queue"
)

const drainInterval = 500 * time.Millisecond
const drainBatchSize = 100

// onDelivery is the broker-receive callback: classify, deduplicate,
// rate-limit and enqueue. It never blocks on the database — the queue
// enqueue is the only suspension point per the concurrency model.
func (s *Supervisor) onDelivery(topic string, payload []byte) {
	metrics.EventsReceivedTotal.Inc()

	events := s.classifier.Classify(topic, payload)
	for _, e := range events {
		s.admit(e)
	}
}

func (s *Supervisor) admit(e domain.Event) {
	if key, ok := dedupeKey(e); ok {
		if s.dedupe.Seen(key) {
			s.recordDuplicate()
			return
		}
		id, err := s.dedupeIDFn(key)
		if err == nil {
			e.QueueID = id
		}
	}

	if src := sourceOf(e); src != "" {
		res := s.ratelimit.Allow(src)
		if !res.Admitted {
			s.recordRateLimited()
			log.Debugf("supervisor: rate-limited source %s, retry in %s", src, res.TimeUntilNext)
			return
		}
	}

	item := queue.Item{ID: e.QueueID, Priority: priorityOf(e), Event: e}
	if !s.queue.Enqueue(item) {
		metrics.RecordError(ingest.Overflow)
		s.recordOverflow()
		return
	}

	metrics.EventsAdmittedTotal.WithLabelValues(string(e.Kind)).Inc()
}

// drainLoop ticks every 500ms, dequeuing up to drainBatchSize events and
// handing each to the writer (non-blocking add) and the broadcaster
// (non-blocking publish), until stopCh is closed; it then keeps draining
// until the queue is empty.
func (s *Supervisor) drainLoop() {
	defer close(s.drainDoneCh)

	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.drainOnce()
		case <-s.drainStopCh:
			for s.queue.Stats().Total > 0 {
				s.drainOnce()
			}
			return
		}
	}
}

func (s *Supervisor) drainOnce() {
	items := s.queue.Dequeue(drainBatchSize)
	for _, item := range items {
		e, ok := item.Event.(domain.Event)
		if !ok {
			continue
		}
		if !s.writer.Add(e) {
			log.Warnf("supervisor: writer channel full, dropping %s event", e.Kind)
			metrics.RecordError(ingest.Storage)
		}
		s.broadcaster.Publish(e)
	}

	st := s.queue.Stats()
	for p, depth := range st.Depths {
		metrics.QueueDepth.WithLabelValues(priorityLabel(p)).Set(float64(depth))
	}
	metrics.QueueUtilization.Set(st.Utilization)

	ws := s.writer.Stats()
	metrics.SetWriterDegraded(ws.Degraded)
	if ws.LastBatchNanos > 0 {
		metrics.WriterBatchLatencySeconds.Observe(time.Duration(ws.LastBatchNanos).Seconds())
	}

	metrics.SetBrokerConnected(s.broker.Connected())
	metrics.BroadcasterSessions.Set(float64(s.broadcaster.SessionCount()))
}

func priorityLabel(p int) string {
	switch queue.Priority(p) {
	case queue.Critical:
		return "critical"
	case queue.High:
		return "high"
	case queue.Normal:
		return "normal"
	case queue.Low:
		return "low"
	default:
		return "unknown"
	}
}

func (s *Supervisor) recordDuplicate() {
	s.statsMu.Lock()
	s.deduplicated++
	s.statsMu.Unlock()
	metrics.EventsDeduplicatedTotal.Inc()
}

func (s *Supervisor) recordRateLimited() {
	s.statsMu.Lock()
	s.rateLimited++
	s.statsMu.Unlock()
	metrics.EventsRateLimitedTotal.Inc()
}

func (s *Supervisor) recordOverflow() {
	s.statsMu.Lock()
	s.overflowed++
	s.statsMu.Unlock()
}
