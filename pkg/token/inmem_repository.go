package token

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	autherr "github.com/kandriws/authcore/pkg/errors"
)

// InMemRepository implements the Repository interface with an in-memory
// map, for development and tests.
type InMemRepository struct {
	mu     sync.RWMutex
	tokens map[uuid.UUID]*Token
}

// NewInMemRepository creates a new in-memory token repository
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		tokens: make(map[uuid.UUID]*Token),
	}
}

func (r *InMemRepository) Save(ctx context.Context, t *Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *t
	r.tokens[t.ID] = &clone
	return nil
}

func (r *InMemRepository) FindByTokenID(ctx context.Context, id uuid.UUID) (*Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tokens[id]
	if !exists {
		return nil, autherr.NotFound("token", id.String())
	}
	clone := *t
	return &clone, nil
}

func (r *InMemRepository) DeleteByTokenID(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tokens[id]; !exists {
		return autherr.NotFound("token", id.String())
	}
	delete(r.tokens, id)
	return nil
}

func (r *InMemRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, id)
		}
	}
	return nil
}

func (r *InMemRepository) Rotate(ctx context.Context, oldID uuid.UUID, replacement *Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tokens[oldID]; !exists {
		return autherr.NotFound("token", oldID.String())
	}
	delete(r.tokens, oldID)

	clone := *replacement
	r.tokens[replacement.ID] = &clone
	return nil
}

func (r *InMemRepository) MarkConsumedIfNotConsumed(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.tokens[id]
	if !exists {
		return false, autherr.NotFound("token", id.String())
	}
	if t.ConsumedAt != nil {
		return false, nil
	}
	consumedAt := now
	t.ConsumedAt = &consumedAt
	return true, nil
}
