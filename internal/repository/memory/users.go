// Package memory holds in-process implementations of the repository ports.
// They enforce the same uniqueness and version rules as the Postgres stores
// and are used in development mode and in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/amberops/workspace/internal/domain"
)

type loginKey struct {
	tenantID string
	login    string
}

// UserRepository implements domain.UserRepository in memory
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byLogin map[loginKey]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]*domain.User),
		byLogin: make(map[loginKey]string),
	}
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := loginKey{tenantID: user.TenantID, login: user.Login}
	if _, exists := r.byLogin[key]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateLogin, user.Login)
	}
	if _, exists := r.byID[user.ID]; exists {
		return fmt.Errorf("%w: user %s already exists", domain.ErrInvalidInput, user.ID)
	}

	now := time.Now().UTC()
	user.Version = 1
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := *user
	r.byID[user.ID] = &stored
	r.byLogin[key] = user.ID
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	return copyUser(u), nil
}

func (r *UserRepository) GetByLogin(_ context.Context, tenantID, login string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byLogin[loginKey{tenantID: tenantID, login: login}]
	if !ok {
		return nil, fmt.Errorf("%w: login %s", domain.ErrNotFound, login)
	}
	return copyUser(r.byID[id]), nil
}

// Update applies user when its Version matches the stored one. Login and
// tenant are immutable.
func (r *UserRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[user.ID]
	if !ok {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, user.ID)
	}
	if stored.Version != user.Version {
		return fmt.Errorf("%w: user %s", domain.ErrVersionConflict, user.ID)
	}
	stored.FirstName = user.FirstName
	stored.LastName = user.LastName
	stored.Email = user.Email
	stored.Role = user.Role
	stored.IsActive = user.IsActive
	stored.PasswordHash = user.PasswordHash
	stored.Version++
	stored.UpdatedAt = time.Now().UTC()

	user.Version = stored.Version
	user.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *UserRepository) RecordLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	t := at.UTC()
	stored.LastLoginAt = &t
	return nil
}

func (r *UserRepository) ListByTenant(_ context.Context, tenantID string) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*domain.User{}
	for _, u := range r.byID {
		if u.TenantID == tenantID {
			out = append(out, copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Login < out[j].Login })
	return out, nil
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
