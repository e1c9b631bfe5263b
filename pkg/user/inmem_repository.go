package user

import (
	"context"
	"sync"

	"github.com/google/uuid"
	autherr "github.com/kandriws/authcore/pkg/errors"
	"github.com/kandriws/authcore/pkg/utils"
)

// InMemRepository implements the Repository interface with an in-memory map.
// Intended for tests and local development.
type InMemRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]User
}

// NewInMemRepository creates a new in-memory user repository
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		users: make(map[uuid.UUID]User),
	}
}

// FindByID retrieves a user by id
func (r *InMemRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, autherr.NotFound("user", id.String())
	}
	cp := u.clone()
	return &cp, nil
}

// FindByEmail retrieves a user by case-normalized email
func (r *InMemRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	normalized := utils.NormalizeEmail(email)
	for _, u := range r.users {
		if u.Email == normalized {
			cp := u.clone()
			return &cp, nil
		}
	}
	return nil, autherr.NotFound("user", normalized)
}

// ExistsByEmail checks whether an email is already registered
func (r *InMemRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	normalized := utils.NormalizeEmail(email)
	for _, u := range r.users {
		if u.Email == normalized {
			return true, nil
		}
	}
	return false, nil
}

// Save upserts the user snapshot
func (r *InMemRepository) Save(ctx context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[u.ID] = u.clone()
	return nil
}

// AssignRoles replaces the user's role set
func (r *InMemRepository) AssignRoles(ctx context.Context, id uuid.UUID, roles []Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return autherr.NotFound("user", id.String())
	}
	u.Roles = append([]Role(nil), roles...)
	r.users[id] = u
	return nil
}

// AssignPermissions replaces the user's permission set
func (r *InMemRepository) AssignPermissions(ctx context.Context, id uuid.UUID, permissions []Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return autherr.NotFound("user", id.String())
	}
	u.Permissions = append([]Permission(nil), permissions...)
	r.users[id] = u
	return nil
}
