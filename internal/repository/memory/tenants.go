package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/amberops/workspace/internal/domain"
)

// TenantRepository implements domain.TenantRepository in memory
type TenantRepository struct {
	mu      sync.RWMutex
	tenants map[string]*domain.Tenant
}

func NewTenantRepository() *TenantRepository {
	return &TenantRepository{tenants: make(map[string]*domain.Tenant)}
}

func (r *TenantRepository) Create(_ context.Context, tenant *domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tenants[tenant.ID]; exists {
		return fmt.Errorf("%w: tenant %s already exists", domain.ErrInvalidInput, tenant.ID)
	}
	if tenant.IsActive && r.prefixTakenLocked(tenant.LoginPrefix, tenant.ID) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicatePrefix, tenant.LoginPrefix)
	}
	now := time.Now().UTC()
	tenant.Version = 1
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	stored := *tenant
	r.tenants[tenant.ID] = &stored
	return nil
}

func (r *TenantRepository) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[id]
	if !ok {
		return nil, fmt.Errorf("%w: tenant %s", domain.ErrNotFound, id)
	}
	c := *t
	return &c, nil
}

func (r *TenantRepository) GetActiveByPrefix(_ context.Context, prefix string) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tenants {
		if t.IsActive && t.LoginPrefix == prefix {
			c := *t
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: prefix %s", domain.ErrNotFound, prefix)
}

func (r *TenantRepository) Update(_ context.Context, tenant *domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tenants[tenant.ID]
	if !ok {
		return fmt.Errorf("%w: tenant %s", domain.ErrNotFound, tenant.ID)
	}
	if stored.Version != tenant.Version {
		return fmt.Errorf("%w: tenant %s", domain.ErrVersionConflict, tenant.ID)
	}
	if tenant.IsActive && r.prefixTakenLocked(tenant.LoginPrefix, tenant.ID) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicatePrefix, tenant.LoginPrefix)
	}
	stored.DisplayName = tenant.DisplayName
	stored.LoginPrefix = tenant.LoginPrefix
	stored.IsActive = tenant.IsActive
	stored.Version++
	stored.UpdatedAt = time.Now().UTC()

	tenant.Version = stored.Version
	tenant.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *TenantRepository) List(_ context.Context) ([]*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (r *TenantRepository) prefixTakenLocked(prefix, exceptID string) bool {
	for id, t := range r.tenants {
		if id != exceptID && t.IsActive && t.LoginPrefix == prefix {
			return true
		}
	}
	return false
}
