// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package broker maintains the single subscription to the pub/sub
// transport that delivers mesh packet envelopes, translating the
// MQTT-style topic grammar the wire format uses onto whatever the
// concrete transport speaks.
package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/meshtastic/meshwatch/internal/log"
)

// Handler processes one delivered envelope. topic is the original
// MQTT-style topic string (not the translated wire-subject), payload
// is the raw, possibly-binary body.
type Handler func(topic string, payload []byte)

// Broker is the pub/sub transport contract the classifier's input side
// runs against. It is deliberately narrow — subscribe once, publish,
// report liveness, close — so a non-NATS transport can stand in during
// tests without dragging in a real connection.
type Broker interface {
	Subscribe(topicPattern string, handler Handler) error
	Publish(topic string, payload []byte) error
	Connected() bool
	Close()
}

// Config is the subset of internal/config.Config the broker needs.
type Config struct {
	URL               string
	Username          string
	Password          string
	ClientID          string
	UseTLS            bool
	ReconnectPeriodMs int
}

const keepAliveInterval = 60 * time.Second

// NATSBroker adapts a NATS connection to the Broker interface. MQTT's
// "#" multi-level wildcard is translated to NATS's ">" at subscribe
// time, and the "/"-delimited topic segments are rejoined with NATS's
// "." token separator; delivered subjects are mapped back to "/" form.
type NATSBroker struct {
	mu            sync.Mutex
	conn          *nats.Conn
	subscriptions []*nats.Subscription
	connected     bool
	lastMessageAt time.Time
}

// Dial opens a connection per cfg, registering reconnect/disconnect/
// error handlers in the teacher's style so transport faults never
// escape as process-terminating errors — they're logged and the
// client reconnects on its own schedule.
func Dial(cfg Config) (*NATSBroker, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("broker: URL is required")
	}

	b := &NATSBroker{}

	var opts []nats.Option
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.ClientID != "" {
		opts = append(opts, nats.Name(cfg.ClientID))
	}
	reconnectWait := time.Duration(cfg.ReconnectPeriodMs) * time.Millisecond
	if reconnectWait <= 0 {
		reconnectWait = 5 * time.Second
	}
	if cfg.UseTLS {
		opts = append(opts, nats.Secure(nil))
	}
	opts = append(opts,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.PingInterval(keepAliveInterval),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			b.mu.Lock()
			b.connected = false
			b.mu.Unlock()
			if err != nil {
				log.Warnf("broker: disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			b.mu.Lock()
			b.connected = true
			b.mu.Unlock()
			log.Infof("broker: reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			if sub != nil {
				log.Errorf("broker: error on subscription %q: %v", sub.Subject, err)
			} else {
				log.Errorf("broker: error: %v", err)
			}
		}),
	)

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("broker: connect to %s: %w", cfg.URL, err)
	}

	b.conn = nc
	b.connected = true
	log.Infof("broker: connected to %s", cfg.URL)
	return b, nil
}

// mqttToNATSSubject translates the MQTT "#" multi-level wildcard, which
// must be the final topic segment, to NATS's ">" token. MQTT's "+"
// single-level wildcard maps onto NATS's "*" the same way; the spec's
// own topic patterns only ever use "#", but both are handled since the
// grammar doesn't forbid "+".
func mqttToNATSSubject(topicPattern string) string {
	segments := strings.Split(topicPattern, "/")
	for i, seg := range segments {
		switch seg {
		case "#":
			segments[i] = ">"
		case "+":
			segments[i] = "*"
		}
	}
	return strings.Join(segments, ".")
}

// Subscribe registers handler for every message matching topicPattern,
// with QoS-at-least-once semantics: NATS core delivery is at-most-once
// per connection, but redelivery across the broker's own reconnect
// window is the at-least-once guarantee the spec assumes at this
// boundary (Non-goals: exactly-once across restarts).
func (b *NATSBroker) Subscribe(topicPattern string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	subject := mqttToNATSSubject(topicPattern)
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		b.mu.Lock()
		b.lastMessageAt = time.Now()
		b.mu.Unlock()
		handler(natsSubjectToTopic(msg.Subject), msg.Data)
	})
	if err != nil {
		return fmt.Errorf("broker: subscribe to %q: %w", topicPattern, err)
	}

	b.subscriptions = append(b.subscriptions, sub)
	log.Infof("broker: subscribed to %q (subject %q)", topicPattern, subject)
	return nil
}

// natsSubjectToTopic reverses the "." subject-token join back into a
// "/"-delimited MQTT-style topic for the classifier's topic parser.
func natsSubjectToTopic(subject string) string {
	return strings.ReplaceAll(subject, ".", "/")
}

// Publish sends payload on topic, translating it the same way
// Subscribe does (publish never carries wildcards, so this is
// idempotent on ordinary topics).
func (b *NATSBroker) Publish(topic string, payload []byte) error {
	subject := mqttToNATSSubject(topic)
	if err := b.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("broker: publish to %q: %w", topic, err)
	}
	return nil
}

// Connected reports whether the underlying connection believes itself
// live; used by the supervisor's health check.
func (b *NATSBroker) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected && b.conn != nil && b.conn.IsConnected()
}

// LastMessageAge returns how long it has been since the last delivered
// message, or a very large duration if none have arrived yet — feeds
// the supervisor's "last-message age > 5 min" degraded condition.
func (b *NATSBroker) LastMessageAge() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastMessageAt.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return time.Since(b.lastMessageAt)
}

// Close unsubscribes everything and closes the connection, flushing
// first so in-flight publishes complete.
func (b *NATSBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			log.Warnf("broker: unsubscribe failed: %v", err)
		}
	}
	b.subscriptions = nil

	if b.conn != nil {
		_ = b.conn.FlushTimeout(2 * time.Second)
		b.conn.Close()
		log.Info("broker: connection closed")
	}
	b.connected = false
}

// waitConnected blocks until the connection reports live or ctx is
// done; used at startup where the spec gives a 30s connect timeout.
func waitConnected(ctx context.Context, b *NATSBroker) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if b.Connected() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// DialWithTimeout dials and waits for the connection to be confirmed
// live, bounded by the broker-connect timeout (default 30s, per §6).
func DialWithTimeout(cfg Config, timeout time.Duration) (*NATSBroker, error) {
	b, err := Dial(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := waitConnected(ctx, b); err != nil {
		b.Close()
		return nil, fmt.Errorf("broker: connect timeout: %w", err)
	}
	return b, nil
}
