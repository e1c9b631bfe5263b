package otp

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	autherr "github.com/kandriws/authcore/pkg/errors"
)

// InMemRepository implements the Repository interface with an in-memory
// map, for development and tests.
type InMemRepository struct {
	mu   sync.RWMutex
	otps map[uuid.UUID]*Otp
}

// NewInMemRepository creates a new in-memory otp repository
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		otps: make(map[uuid.UUID]*Otp),
	}
}

func (r *InMemRepository) Save(ctx context.Context, o *Otp) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *o
	r.otps[o.ID] = &clone
	return nil
}

func (r *InMemRepository) FindByUserIDAndCode(ctx context.Context, userID uuid.UUID, code string) (*Otp, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	match := r.latest(func(o *Otp) bool {
		return o.UserID == userID && o.Code == code
	})
	if match == nil {
		return nil, autherr.New(autherr.ErrCodeNotFound, "otp not found")
	}
	clone := *match
	return &clone, nil
}

func (r *InMemRepository) FindActiveByUserAndPurpose(ctx context.Context, userID uuid.UUID, purpose Purpose, now time.Time) (*Otp, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	match := r.latest(func(o *Otp) bool {
		return o.UserID == userID && o.Purpose == purpose && o.IsActive(now)
	})
	if match == nil {
		return nil, autherr.New(autherr.ErrCodeNotFound, "otp not found")
	}
	clone := *match
	return &clone, nil
}

func (r *InMemRepository) MarkUsedIfUnused(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, exists := r.otps[id]
	if !exists {
		return false, autherr.New(autherr.ErrCodeNotFound, "otp not found")
	}
	if o.UsedAt != nil {
		return false, nil
	}
	usedAt := now
	o.UsedAt = &usedAt
	return true, nil
}

func (r *InMemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.otps, id)
	return nil
}

// latest returns the most recently created otp matching the predicate.
// Caller must hold at least a read lock.
func (r *InMemRepository) latest(match func(*Otp) bool) *Otp {
	var candidates []*Otp
	for _, o := range r.otps {
		if match(o) {
			candidates = append(candidates, o)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	return candidates[0]
}
