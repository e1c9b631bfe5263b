package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemStore implements Store with a mutex-guarded map. Intended for tests
// and local development; the mutex makes Hit effectively atomic in-process.
type InMemStore struct {
	mu         sync.Mutex
	windows    map[string]*Window
	thresholds []Threshold
}

// NewInMemStore creates a new in-memory rate limit store
func NewInMemStore(thresholds []Threshold) *InMemStore {
	return &InMemStore{
		windows:    make(map[string]*Window),
		thresholds: thresholds,
	}
}

// Get rehydrates the window for a key
func (s *InMemStore) Get(ctx context.Context, key string) (*Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.windows[key]; ok {
		cp := *w
		return &cp, nil
	}
	return NewWindow(s.thresholds), nil
}

// Hit counts one failed attempt and persists the result
func (s *InMemStore) Hit(ctx context.Context, key string, now time.Time) (*Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		w = NewWindow(s.thresholds)
		s.windows[key] = w
	}
	w.RegisterAttemptAndBlockIfLimitReached(now)

	cp := *w
	return &cp, nil
}

// Reset clears the counter and any lockout for a key
func (s *InMemStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.windows, key)
	return nil
}
