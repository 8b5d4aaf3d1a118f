// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fanout

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meshtastic/meshwatch/internal/log"
)

// maxOutboundBytes bounds the buffered-but-unsent JSON per session;
// a slow consumer that can't keep up gets dropped instead of growing
// without limit.
const maxOutboundBytes = 1 << 20 // 1MB

const (
	writeTimeout = 5 * time.Second
)

// session is one connected dashboard client.
type session struct {
	id          string
	conn        *websocket.Conn
	filter      *Filter
	connectedAt time.Time

	mu            sync.Mutex
	lastPong      time.Time
	bytesSent     uint64
	messagesSent  uint64
	outboundBytes int
	closed        bool

	send    chan []byte
	closeCh chan struct{}
}

func newSession(id string, conn *websocket.Conn, filter *Filter) *session {
	return &session{
		id:          id,
		conn:        conn,
		filter:      filter,
		connectedAt: time.Now(),
		lastPong:    time.Now(),
		send:        make(chan []byte, 256),
		closeCh:     make(chan struct{}),
	}
}

// enqueue offers msg to the session's outbound buffer, rejecting it
// (and signaling the caller to drop the connection) if admitting it
// would exceed the 1MB cap.
func (s *session) enqueue(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if s.outboundBytes+len(msg) > maxOutboundBytes {
		return false
	}

	select {
	case s.send <- msg:
		s.outboundBytes += len(msg)
		return true
	default:
		return false
	}
}

func (s *session) markSent(n int) {
	s.mu.Lock()
	s.outboundBytes -= n
	if s.outboundBytes < 0 {
		s.outboundBytes = 0
	}
	s.bytesSent += uint64(n)
	s.messagesSent++
	s.mu.Unlock()
}

func (s *session) touchPong() {
	s.mu.Lock()
	s.lastPong = time.Now()
	s.mu.Unlock()
}

func (s *session) idleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastPong)
}

// close marks the session closed and stops its write pump; safe to
// call more than once.
func (s *session) close(reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.closeCh)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
		time.Now().Add(writeTimeout))
	_ = s.conn.Close()
}

// writePump drains send until closeCh fires, one websocket frame per
// buffered message — mirrors the single-writer-owns-handle discipline
// the rest of this module follows for any shared connection.
func (s *session) writePump() {
	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debugf("fanout: write to session %s failed: %v", s.id, err)
				s.close("write-error")
				return
			}
			s.markSent(len(msg))
		case <-s.closeCh:
			return
		}
	}
}
