// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowsUpToMaxPerWindow(t *testing.T) {
	l := New(time.Second, 1, 5*time.Minute)

	r1 := l.Allow("!01020304")
	assert.True(t, r1.Admitted)

	r2 := l.Allow("!01020304")
	assert.False(t, r2.Admitted)
	assert.Greater(t, r2.TimeUntilNext, time.Duration(0))
}

func TestIndependentPerSource(t *testing.T) {
	l := New(time.Second, 1, 5*time.Minute)
	assert.True(t, l.Allow("a").Admitted)
	assert.True(t, l.Allow("b").Admitted)
	assert.False(t, l.Allow("a").Admitted)
}

func TestAdmitsAgainAfterWindowPasses(t *testing.T) {
	l := New(20*time.Millisecond, 1, 5*time.Minute)
	assert.True(t, l.Allow("a").Admitted)
	assert.False(t, l.Allow("a").Admitted)
	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.Allow("a").Admitted)
}

func TestTenEventsIn400msWithDefaultLimits(t *testing.T) {
	// Mirrors the spec's rate-limit scenario: default window 1000ms, max 1.
	l := New(time.Second, 1, 5*time.Minute)
	admitted := 0
	var lastDeny Result
	for i := 0; i < 10; i++ {
		r := l.Allow("!source")
		if r.Admitted {
			admitted++
		} else {
			lastDeny = r
		}
	}
	assert.Equal(t, 1, admitted)
	assert.InDelta(t, time.Second, lastDeny.TimeUntilNext, float64(50*time.Millisecond))
}

func TestGCRemovesIdleSources(t *testing.T) {
	l := New(time.Second, 1, 10*time.Millisecond)
	l.Allow("a")
	assert.Equal(t, 1, l.SourceCount())

	time.Sleep(20 * time.Millisecond)
	removed := l.GC()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, l.SourceCount())
}
