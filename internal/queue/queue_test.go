// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDequeueOrderAcrossLevels(t *testing.T) {
	q := New(100)
	require.True(t, q.Enqueue(Item{ID: "low1", Priority: Low}))
	require.True(t, q.Enqueue(Item{ID: "crit1", Priority: Critical}))
	require.True(t, q.Enqueue(Item{ID: "normal1", Priority: Normal}))
	require.True(t, q.Enqueue(Item{ID: "high1", Priority: High}))
	require.True(t, q.Enqueue(Item{ID: "crit2", Priority: Critical}))

	got := q.Dequeue(10)
	ids := make([]string, len(got))
	for i, it := range got {
		ids[i] = it.ID
	}
	assert.Equal(t, []string{"crit1", "crit2", "high1", "normal1", "low1"}, ids)
}

func TestFIFOWithinLevel(t *testing.T) {
	q := New(100)
	q.Enqueue(Item{ID: "a", Priority: Normal})
	q.Enqueue(Item{ID: "b", Priority: Normal})
	q.Enqueue(Item{ID: "c", Priority: Normal})

	got := q.Dequeue(10)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "c", got[2].ID)
}

func TestPriorityPreemptionScenario(t *testing.T) {
	q := New(10000)
	for i := 0; i < 10000; i++ {
		require.True(t, q.Enqueue(Item{ID: "low", Priority: Low}))
	}

	// queue is full; a critical event must still be admitted by eviction.
	ok := q.Enqueue(Item{ID: "crit", Priority: Critical})
	require.True(t, ok)

	stats := q.Stats()
	assert.Equal(t, 10000, stats.Total)

	got := q.Dequeue(1)
	require.Len(t, got, 1)
	assert.Equal(t, "crit", got[0].ID)
}

func TestLowNormalRejectedWhenFull(t *testing.T) {
	q := New(2)
	require.True(t, q.Enqueue(Item{ID: "a", Priority: Low}))
	require.True(t, q.Enqueue(Item{ID: "b", Priority: Normal}))

	assert.False(t, q.Enqueue(Item{ID: "c", Priority: Low}))
	assert.False(t, q.Enqueue(Item{ID: "d", Priority: Normal}))
}

func TestHighEvictsLowThenNormal(t *testing.T) {
	q := New(2)
	require.True(t, q.Enqueue(Item{ID: "low", Priority: Low}))
	require.True(t, q.Enqueue(Item{ID: "normal", Priority: Normal}))

	require.True(t, q.Enqueue(Item{ID: "high", Priority: High}))
	stats := q.Stats()
	assert.Equal(t, 2, stats.Total)

	got := q.Dequeue(10)
	ids := make([]string, len(got))
	for i, it := range got {
		ids[i] = it.ID
	}
	assert.Equal(t, []string{"high", "normal"}, ids)
}

func TestStatsUtilization(t *testing.T) {
	q := New(4)
	q.Enqueue(Item{ID: "a", Priority: Normal})
	stats := q.Stats()
	assert.Equal(t, 0.25, stats.Utilization)
}

func TestDefaultPriority(t *testing.T) {
	low := uint32(5)
	assert.Equal(t, Critical, DefaultPriority("telemetry", &low, nil, false))

	util := float32(90)
	assert.Equal(t, High, DefaultPriority("telemetry", nil, &util, false))

	assert.Equal(t, Normal, DefaultPriority("telemetry", nil, nil, false))
	assert.Equal(t, High, DefaultPriority("message", nil, nil, false))
	assert.Equal(t, Normal, DefaultPriority("message", nil, nil, true))
	assert.Equal(t, High, DefaultPriority("node", nil, nil, false))
	assert.Equal(t, Normal, DefaultPriority("position", nil, nil, false))
	assert.Equal(t, Normal, DefaultPriority("unknown", nil, nil, false))
}
