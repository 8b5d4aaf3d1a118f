// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ratelimit implements a per-source sliding-window admission
// limiter.
package ratelimit

import (
	"sync"
	"time"
)

// source tracks one sender's recent admit timestamps and its last
// activity, so inactive sources can be garbage-collected.
type source struct {
	admits     []time.Time
	lastActive time.Time
}

// Limiter admits or denies events per source under a sliding window.
type Limiter struct {
	mu            sync.Mutex
	window        time.Duration
	maxPerWindow  int
	idleThreshold time.Duration
	sources       map[string]*source
}

// New returns a Limiter with the given window, admission count, and the
// idle duration after which an inactive source is forgotten (default
// callers should pass 5 minutes per the spec).
func New(window time.Duration, maxPerWindow int, idleThreshold time.Duration) *Limiter {
	return &Limiter{
		window:        window,
		maxPerWindow:  maxPerWindow,
		idleThreshold: idleThreshold,
		sources:       make(map[string]*source),
	}
}

// Result reports the admission decision and, when denied, how long until
// the next admission would succeed.
type Result struct {
	Admitted      bool
	TimeUntilNext time.Duration
}

// Allow checks and, if admitting, records one event from src at now.
func (l *Limiter) Allow(src string) Result {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sources[src]
	if !ok {
		s = &source{}
		l.sources[src] = s
	}
	s.lastActive = now

	cutoff := now.Add(-l.window)
	kept := s.admits[:0]
	for _, t := range s.admits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.admits = kept

	if len(s.admits) < l.maxPerWindow {
		s.admits = append(s.admits, now)
		return Result{Admitted: true}
	}

	oldest := s.admits[0]
	return Result{
		Admitted:      false,
		TimeUntilNext: oldest.Add(l.window).Sub(now),
	}
}

// GC drops sources that have been inactive longer than idleThreshold,
// returning the number removed.
func (l *Limiter) GC() int {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, s := range l.sources {
		if now.Sub(s.lastActive) > l.idleThreshold {
			delete(l.sources, key)
			removed++
		}
	}
	return removed
}

// SourceCount reports how many sources are currently tracked.
func (l *Limiter) SourceCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sources)
}
