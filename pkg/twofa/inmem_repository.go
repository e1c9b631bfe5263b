package twofa

import (
	"context"
	"sync"

	"github.com/google/uuid"
	autherr "github.com/kandriws/authcore/pkg/errors"
)

// InMemRepository implements the Repository interface with an in-memory
// map keyed by user id, for development and tests.
type InMemRepository struct {
	mu       sync.RWMutex
	settings map[uuid.UUID]*Setting
}

// NewInMemRepository creates a new in-memory twofa repository
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		settings: make(map[uuid.UUID]*Setting),
	}
}

func (r *InMemRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*Setting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.settings[userID]
	if !exists {
		return nil, autherr.NotFound("two-factor setting", userID.String())
	}
	clone := *s
	return &clone, nil
}

func (r *InMemRepository) Save(ctx context.Context, s *Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *s
	r.settings[s.UserID] = &clone
	return nil
}

func (r *InMemRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.settings[userID]; !exists {
		return autherr.NotFound("two-factor setting", userID.String())
	}
	delete(r.settings, userID)
	return nil
}
