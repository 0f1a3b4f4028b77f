package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is the single-instance backend: a mutex-guarded map, pruned
// of expired entries on every increment so memory stays bounded. Not
// durable and not shared across processes.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Incr implements Store.
func (s *MemoryStore) Incr(_ context.Context, identifier string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	e, ok := s.entries[identifier]
	if !ok || !e.resetAt.After(now) {
		e = &memoryEntry{count: 0, resetAt: now.Add(window)}
		s.entries[identifier] = e
	}
	e.count++
	return e.count, e.resetAt.Sub(now), nil
}

// Len reports the number of tracked identifiers (expired entries included
// until the next prune).
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) pruneLocked(now time.Time) {
	for id, e := range s.entries {
		if !e.resetAt.After(now) {
			delete(s.entries, id)
		}
	}
}
