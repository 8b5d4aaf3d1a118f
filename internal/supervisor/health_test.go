// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meshtastic/meshwatch/internal/broker"
	"github.com/meshtastic/meshwatch/internal/queue"
	"github.com/meshtastic/meshwatch/internal/storage"
)

type fakeBroker struct {
	connected bool
	age       time.Duration
}

func (f *fakeBroker) Subscribe(string, broker.Handler) error { return nil }
func (f *fakeBroker) Publish(string, []byte) error           { return nil }
func (f *fakeBroker) Connected() bool                        { return f.connected }
func (f *fakeBroker) Close()                                 {}
func (f *fakeBroker) LastMessageAge() time.Duration          { return f.age }

func newTestSupervisor() *Supervisor {
	return &Supervisor{
		queue:  queue.New(10),
		writer: storage.NewWriter(nil, 10, time.Second, 10),
		broker: &fakeBroker{connected: true},
	}
}

func TestHealthHealthyByDefault(t *testing.T) {
	s := newTestSupervisor()
	h := s.Health()
	assert.Equal(t, StatusHealthy, h.Status)
	assert.Empty(t, h.Issues)
}

func TestHealthDegradedWhenQueueOverNinetyPercent(t *testing.T) {
	s := newTestSupervisor()
	for i := 0; i < 10; i++ {
		s.queue.Enqueue(queue.Item{ID: "x", Priority: queue.Critical})
	}
	h := s.Health()
	assert.Equal(t, StatusDegraded, h.Status)
	assert.Contains(t, h.Issues, "queue over 90% full")
}

func TestHealthDegradedWhenBrokerDisconnected(t *testing.T) {
	s := newTestSupervisor()
	s.broker = &fakeBroker{connected: false}
	h := s.Health()
	assert.Equal(t, StatusDegraded, h.Status)
	assert.Contains(t, h.Issues, "broker disconnected")
}

func TestHealthDegradedWhenLastMessageStale(t *testing.T) {
	s := newTestSupervisor()
	s.broker = &fakeBroker{connected: true, age: 10 * time.Minute}
	h := s.Health()
	assert.Equal(t, StatusDegraded, h.Status)
	assert.Contains(t, h.Issues, "no broker message received in over 5 minutes")
}

func TestHealthUnhealthyWhenStopped(t *testing.T) {
	s := newTestSupervisor()
	s.stopped = true
	h := s.Health()
	assert.Equal(t, StatusUnhealthy, h.Status)
}

func TestHealthCombinesMultipleIssues(t *testing.T) {
	s := newTestSupervisor()
	s.broker = &fakeBroker{connected: false}
	for i := 0; i < 10; i++ {
		s.queue.Enqueue(queue.Item{ID: "x", Priority: queue.Critical})
	}
	h := s.Health()
	assert.Equal(t, StatusDegraded, h.Status)
	assert.Len(t, h.Issues, 2)
}
