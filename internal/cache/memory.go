package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	clock   Clock
}

// NewMemory creates an empty in-memory cache. A nil clock uses the wall clock.
func NewMemory(clock Clock) *Memory {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Memory{entries: make(map[string]Entry), clock: clock}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	if !ok {
		return Entry{}, ErrMiss
	}
	return entry, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, entry Entry) error {
	value := make([]byte, len(entry.Value))
	copy(value, entry.Value)
	m.mu.Lock()
	m.entries[key] = Entry{Value: value, FetchedAt: entry.FetchedAt}
	m.mu.Unlock()
	return nil
}

// Delete implements Cache.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Purge drops entries fetched more than maxAge ago and returns how many were removed.
func (m *Memory) Purge(maxAge time.Duration) int {
	cutoff := m.clock.Now().Add(-maxAge)
	removed := 0
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, entry := range m.entries {
		if entry.FetchedAt.Before(cutoff) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}
