package store

import (
	"context"
	"sync"
	"time"

	"github.com/elicit-dev/elicit/internal/domain"
)

// MemorySessionStore implements SessionStore in process memory. Suitable for
// single-instance deployments and tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.SavedSession
	ttl      time.Duration
	now      func() time.Time
}

// NewMemorySessionStore creates an empty in-memory session store. A
// non-positive ttl selects the default resume window.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domain.SavedSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Get(ctx context.Context, key string) (*domain.SavedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, nil
	}
	if !sess.Resumable(s.now(), s.ttl) {
		delete(s.sessions, key)
		return nil, nil
	}

	out := sess
	out.Messages = append([]domain.Message(nil), sess.Messages...)
	return &out, nil
}

func (s *MemorySessionStore) Put(ctx context.Context, key string, sess domain.SavedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.SavedAt.IsZero() {
		sess.SavedAt = s.now()
	}
	sess.Messages = append([]domain.Message(nil), sess.Messages...)
	s.sessions[key] = sess
	return nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

// Len reports the number of stored sessions, for tests.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
