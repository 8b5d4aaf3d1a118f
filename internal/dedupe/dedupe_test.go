// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeenWithinWindow(t *testing.T) {
	s := New(60*time.Second, 100)
	key := Hash(MessageKey(0x123456))

	assert.False(t, s.Seen(key), "first delivery is not a duplicate")
	for i := 0; i < 4; i++ {
		assert.True(t, s.Seen(key), "redelivery within window is a duplicate")
	}
}

func TestSeenAfterWindowExpires(t *testing.T) {
	s := New(10*time.Millisecond, 100)
	key := Hash(MessageKey(42))

	assert.False(t, s.Seen(key))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, s.Seen(key), "expired entries are no longer duplicates")
}

func TestCapacityEviction(t *testing.T) {
	s := New(time.Minute, 4)
	for i := 0; i < 4; i++ {
		s.Seen(Hash(MessageKey(uint32(i))))
	}
	require.Equal(t, 4, s.Len())

	// admitting a 5th key evicts the least-recently-used.
	s.Seen(Hash(MessageKey(99)))
	assert.Equal(t, 4, s.Len())
	assert.False(t, s.Seen(Hash(MessageKey(0))), "evicted key is no longer seen")
}

func TestGCRemovesExpiredOnly(t *testing.T) {
	s := New(10*time.Millisecond, 100)
	s.Seen(Hash(MessageKey(1)))
	time.Sleep(20 * time.Millisecond)
	s.Seen(Hash(MessageKey(2)))

	removed := s.GC()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Len())
}

func TestQueueIDFormat(t *testing.T) {
	id, err := QueueID(MessageKey(1))
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{16}-\d+-[0-9a-f]{7}$`, id)

	id2, err := QueueID(MessageKey(1))
	require.NoError(t, err)
	assert.NotEqual(t, id, id2, "random suffix differs across calls")
}

func TestPositionKeyRounding(t *testing.T) {
	k1 := PositionKey("!01020304", 37.77802083, -122.44000012)
	k2 := PositionKey("!01020304", 37.77801999, -122.44000499)
	assert.Equal(t, k1, k2)
}
