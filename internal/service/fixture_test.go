package service

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/amberops/workspace/internal/domain"
	"github.com/amberops/workspace/internal/repository/memory"
	"github.com/amberops/workspace/internal/security"
	"github.com/amberops/workspace/internal/security/audit"
	"github.com/amberops/workspace/internal/security/auth"
)

const superPassword = "super-secret-1"

type fixture struct {
	t        *testing.T
	ctx      context.Context
	users    *memory.UserRepository
	tenants  *memory.TenantRepository
	creds    *memory.CredentialRepository
	sessions *memory.SessionRepository
	authz    *security.AuthorizationService
	auth     *AuthService
	session  *SessionService
	userSvc  *UserService
	tenant   *TenantService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		users:    memory.NewUserRepository(),
		tenants:  memory.NewTenantRepository(),
		creds:    memory.NewCredentialRepository(),
		sessions: memory.NewSessionRepository(),
		authz:    security.NewAuthorizationService(nil),
	}
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	policy := auth.PasswordPolicy{MinLength: 8}
	auditLogger := audit.NewLogger(nil)

	f.userSvc = NewUserService(f.users, f.sessions, f.authz, hasher, policy, auditLogger, nil)
	f.tenant = NewTenantService(f.tenants, f.users, f.sessions, f.userSvc, f.authz, auditLogger, time.Minute, nil)
	f.session = NewSessionService(f.sessions, f.tenant, f.authz, auditLogger, time.Hour, "", nil)
	f.auth = NewAuthService(AuthConfig{BootstrapPassword: superPassword, Policy: policy},
		f.tenant, f.users, f.creds, hasher, f.authz, auditLogger, nil)

	if seeded, err := f.auth.EnsureSuperAdmin(f.ctx); err != nil || !seeded {
		t.Fatalf("seed super admin: %v", err)
	}
	for _, in := range []TenantInput{
		{ID: "latvia", DisplayName: "Latvia", LoginPrefix: "lv"},
		{ID: "georgia", DisplayName: "Georgia", LoginPrefix: "ge"},
		{ID: "poland", DisplayName: "Poland", LoginPrefix: "pl"},
	} {
		if _, err := f.tenant.EnsureTenant(f.ctx, in); err != nil {
			t.Fatalf("seed tenant %s: %v", in.ID, err)
		}
	}
	return f
}

// login authenticates and opens a session, failing the test on error
func (f *fixture) login(raw, password string) *domain.Session {
	f.t.Helper()
	p, err := f.auth.Authenticate(f.ctx, raw, password)
	if err != nil {
		f.t.Fatalf("authenticate %s: %v", raw, err)
	}
	s, err := f.session.Start(f.ctx, p, "")
	if err != nil {
		f.t.Fatalf("start session %s: %v", raw, err)
	}
	return s
}

func (f *fixture) superSession(tenantID string) *domain.Session {
	f.t.Helper()
	s := f.login("admin", superPassword)
	if tenantID != "" {
		if err := f.session.SwitchTenant(f.ctx, s.ID, tenantID); err != nil {
			f.t.Fatalf("switch to %s: %v", tenantID, err)
		}
		s, _ = f.session.Get(f.ctx, s.ID)
	}
	return s
}

// seedUser creates a user directly through the super admin
func (f *fixture) seedUser(tenantID, login string, role domain.Role, password string) *domain.User {
	f.t.Helper()
	actor := f.superSession(tenantID)
	u, err := f.userSvc.CreateUser(f.ctx, actor, domain.UserInput{
		Login: login, Password: password, Role: role, FirstName: "Test", LastName: login,
	})
	if err != nil {
		f.t.Fatalf("seed user %s/%s: %v", tenantID, login, err)
	}
	return u
}
