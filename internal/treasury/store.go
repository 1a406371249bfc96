package treasury

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the fallback StateStore when Redis is not configured.
// State does not survive restarts.
type MemoryStore struct {
	mu      sync.Mutex
	last    time.Time
	handled map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{handled: make(map[string]struct{})}
}

func (s *MemoryStore) LastRandomEvent(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, nil
}

func (s *MemoryStore) SetLastRandomEvent(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = t
	return nil
}

func (s *MemoryStore) Handled(ctx context.Context, requestID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handled[requestID]
	return ok, nil
}

func (s *MemoryStore) MarkHandled(ctx context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handled[requestID] = struct{}{}
	return nil
}
