// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classifier

import "sync"

// ChannelIndexer resolves a channel name to its stable numeric index,
// assigning the next unused slot (0..7) the first time a name is seen
// and persisting the mapping via Persist.
type ChannelIndexer interface {
	Index(name string) (uint8, error)
}

// PersistFunc is invoked whenever ChannelIndexer learns a new
// name→index mapping, so the caller can store it durably.
type PersistFunc func(name string, idx uint8) error

// MemoryChannelIndex is a mutex-protected, in-memory ChannelIndexer.
// Read-heavy; writes only happen on learning a new channel name, which
// is rare after the first few minutes of operation.
type MemoryChannelIndex struct {
	mu      sync.RWMutex
	byName  map[string]uint8
	persist PersistFunc
}

// NewMemoryChannelIndex returns a MemoryChannelIndex seeded with an
// existing name→index mapping (e.g. loaded from storage at startup).
// persist may be nil if learned mappings don't need to be saved.
func NewMemoryChannelIndex(seed map[string]uint8, persist PersistFunc) *MemoryChannelIndex {
	byName := make(map[string]uint8, len(seed))
	for k, v := range seed {
		byName[k] = v
	}
	return &MemoryChannelIndex{byName: byName, persist: persist}
}

// Index returns name's stable index, assigning the next free slot ≤ 7
// the first time name is observed.
func (c *MemoryChannelIndex) Index(name string) (uint8, error) {
	c.mu.RLock()
	if idx, ok := c.byName[name]; ok {
		c.mu.RUnlock()
		return idx, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if idx, ok := c.byName[name]; ok {
		return idx, nil
	}

	used := make([]bool, 8)
	for _, idx := range c.byName {
		if idx < 8 {
			used[idx] = true
		}
	}
	var next uint8
	found := false
	for i := 0; i < 8; i++ {
		if !used[i] {
			next = uint8(i)
			found = true
			break
		}
	}
	if !found {
		next = 7
	}

	c.byName[name] = next
	if c.persist != nil {
		if err := c.persist(name, next); err != nil {
			return 0, err
		}
	}
	return next, nil
}
