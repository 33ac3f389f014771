package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amberops/workspace/internal/domain"
)

// CredentialRepository keeps the super administrator credential in memory
type CredentialRepository struct {
	mu   sync.Mutex
	cred *domain.Credential
}

func NewCredentialRepository() *CredentialRepository {
	return &CredentialRepository{}
}

func (r *CredentialRepository) GetSuperAdmin(_ context.Context) (*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cred == nil {
		return nil, fmt.Errorf("%w: super admin credential", domain.ErrNotFound)
	}
	c := *r.cred
	return &c, nil
}

func (r *CredentialRepository) CreateSuperAdmin(_ context.Context, cred *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cred != nil {
		return fmt.Errorf("%w: super admin credential already exists", domain.ErrVersionConflict)
	}
	cred.UserID = domain.SuperAdminUserID
	cred.Version = 1
	cred.UpdatedAt = time.Now().UTC()
	c := *cred
	r.cred = &c
	return nil
}

func (r *CredentialRepository) ReplaceSuperAdmin(_ context.Context, cred *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cred == nil || r.cred.Version != cred.Version {
		return fmt.Errorf("%w: super admin credential", domain.ErrVersionConflict)
	}
	r.cred.PasswordHash = cred.PasswordHash
	r.cred.Version++
	r.cred.UpdatedAt = time.Now().UTC()

	cred.UserID = domain.SuperAdminUserID
	cred.Version = r.cred.Version
	cred.UpdatedAt = r.cred.UpdatedAt
	return nil
}
