package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SuperAdminUserID is the fixed identifier of the platform-wide administrator.
const SuperAdminUserID = "super-admin"

// User represents a workspace account bound to a tenant
type User struct {
	ID           string     `db:"id" json:"id"`
	Login        string     `db:"login" json:"login"` // unique within its tenant
	FirstName    string     `db:"first_name" json:"firstName"`
	LastName     string     `db:"last_name" json:"lastName"`
	Email        string     `db:"email" json:"email"`
	Role         Role       `db:"role" json:"role"`
	TenantID     string     `db:"tenant_id" json:"tenantId"` // empty only for the super admin
	IsActive     bool       `db:"is_active" json:"isActive"`
	PasswordHash string     `db:"password_hash" json:"-"` // bcrypt, never returned in API
	LastLoginAt  *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	Version      int64      `db:"version" json:"version"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// DisplayName returns "First Last", falling back to the login
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Login
	}
	return name
}

// Validate checks the role/tenant invariant
func (u *User) Validate() error {
	if !u.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, u.Role)
	}
	if u.Role == RoleSuperAdmin && u.TenantID != "" {
		return fmt.Errorf("%w: super admin cannot belong to a tenant", ErrInvalidInput)
	}
	if u.Role != RoleSuperAdmin && u.TenantID == "" {
		return fmt.Errorf("%w: role %s requires a tenant", ErrInvalidInput, u.Role)
	}
	return nil
}

// Principal converts the user into an authenticated principal
func (u *User) Principal() *Principal {
	return &Principal{
		UserID:      u.ID,
		Login:       u.Login,
		DisplayName: u.DisplayName(),
		Role:        u.Role,
		TenantID:    u.TenantID,
	}
}

// UserInput carries the fields an administrator supplies when creating a user
type UserInput struct {
	Login     string `json:"login"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	TenantID  string `json:"tenantId,omitempty"` // optional; must match the actor's effective tenant
}

// Principal is the identity produced by a successful authentication
type Principal struct {
	UserID      string `json:"userId"`
	Login       string `json:"login"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
	TenantID    string `json:"tenantId,omitempty"`
}

// IsSuperAdmin reports whether the principal is the platform administrator
func (p *Principal) IsSuperAdmin() bool {
	return p.Role == RoleSuperAdmin
}

// Credential is the super administrator's password record
type Credential struct {
	UserID       string    `db:"user_id"`
	PasswordHash string    `db:"password_hash"`
	Version      int64     `db:"version"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Tenant represents a country workspace
type Tenant struct {
	ID          string    `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"displayName"`
	LoginPrefix string    `db:"login_prefix" json:"loginPrefix"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	Version     int64     `db:"version" json:"version"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// UserRepository defines data access for tenant users.
// Update is a compare-and-swap on Version and returns ErrVersionConflict
// when the stored version moved on.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByLogin(ctx context.Context, tenantID, login string) (*User, error)
	Update(ctx context.Context, user *User) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
	ListByTenant(ctx context.Context, tenantID string) ([]*User, error)
}

// TenantRepository defines data access for tenants
type TenantRepository interface {
	Create(ctx context.Context, tenant *Tenant) error
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetActiveByPrefix(ctx context.Context, prefix string) (*Tenant, error)
	Update(ctx context.Context, tenant *Tenant) error
	List(ctx context.Context) ([]*Tenant, error)
}

// CredentialRepository holds the single super administrator credential
type CredentialRepository interface {
	GetSuperAdmin(ctx context.Context) (*Credential, error)
	CreateSuperAdmin(ctx context.Context, cred *Credential) error
	ReplaceSuperAdmin(ctx context.Context, cred *Credential) error
}
