package service

import (
	"errors"
	"testing"

	"github.com/amberops/workspace/internal/domain"
)

func assertAuthFailure(t *testing.T, err error, reason error) {
	t.Helper()
	if !domain.IsAuthFailure(err) {
		t.Fatalf("expected AuthFailure, got %v", err)
	}
	if err.Error() != domain.GenericAuthFailureMessage {
		t.Fatalf("auth failure leaked detail: %q", err.Error())
	}
	if !errors.Is(err, reason) {
		t.Fatalf("expected reason %v, got %v", reason, errors.Unwrap(err))
	}
}

func TestAuthenticateTenantUser(t *testing.T) {
	f := newFixture(t)
	f.seedUser("latvia", "mgr", domain.RoleSM, "correct-pass")

	p, err := f.auth.Authenticate(f.ctx, "lv_mgr", "correct-pass")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if p.TenantID != "latvia" || p.Role != domain.RoleSM {
		t.Fatalf("unexpected principal %+v", p)
	}
	u, _ := f.users.GetByLogin(f.ctx, "latvia", "mgr")
	if u.LastLoginAt == nil {
		t.Fatalf("successful login should record last login")
	}

	// same login under another tenant's prefix
	_, err = f.auth.Authenticate(f.ctx, "pl_mgr", "correct-pass")
	assertAuthFailure(t, err, domain.ErrNoSuchUser)
}

func TestAuthenticateFailureReasons(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser("latvia", "dealer1", domain.RoleDealer, "correct-pass")

	cases := []struct {
		login, password string
		reason          error
	}{
		{"lv_dealer1", "wrong-pass", domain.ErrBadPassword},
		{"xx_dealer1", "correct-pass", domain.ErrUnknownTenant},
		{"dealer1", "correct-pass", domain.ErrUnknownTenant},
		{"lv_nobody", "correct-pass", domain.ErrNoSuchUser},
		{"lv_dealer1_x", "correct-pass", domain.ErrAmbiguousLogin},
		{"admin", "wrong-pass", domain.ErrBadPassword},
	}
	for _, tc := range cases {
		_, err := f.auth.Authenticate(f.ctx, tc.login, tc.password)
		assertAuthFailure(t, err, tc.reason)
	}

	stored, _ := f.users.GetByID(f.ctx, u.ID)
	if stored.LastLoginAt != nil {
		t.Fatalf("failed logins must not mutate the user")
	}
}

func TestReservedNameNeverFallsThroughToTenantUser(t *testing.T) {
	f := newFixture(t)
	// a tenant user literally named admin in latvia
	f.seedUser("latvia", "admin", domain.RoleSM, "tenant-admin-pass")

	_, err := f.auth.Authenticate(f.ctx, "admin", "tenant-admin-pass")
	assertAuthFailure(t, err, domain.ErrBadPassword)

	p, err := f.auth.Authenticate(f.ctx, "lv_admin", "tenant-admin-pass")
	if err != nil || p.TenantID != "latvia" || p.Role == domain.RoleSuperAdmin {
		t.Fatalf("prefixed login should reach the tenant user, got %+v %v", p, err)
	}
}

func TestPrefixedAdminStaysInItsTenant(t *testing.T) {
	f := newFixture(t)
	f.seedUser("latvia", "admin", domain.RoleSM, "latvia-pass-1")
	f.seedUser("georgia", "admin", domain.RoleSM, "georgia-pass-1")

	for prefix, want := range map[string]string{"lv": "latvia", "ge": "georgia"} {
		for _, pw := range []string{"latvia-pass-1", "georgia-pass-1"} {
			p, err := f.auth.Authenticate(f.ctx, prefix+"_admin", pw)
			if err == nil && p.TenantID != want {
				t.Fatalf("%s_admin resolved to tenant %s", prefix, p.TenantID)
			}
		}
	}
}

func TestSuperAdminLogin(t *testing.T) {
	f := newFixture(t)
	p, err := f.auth.Authenticate(f.ctx, " ADMIN ", superPassword)
	if err != nil {
		t.Fatalf("super admin login failed: %v", err)
	}
	if !p.IsSuperAdmin() || p.TenantID != "" || p.UserID != domain.SuperAdminUserID {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestDeactivatedUserCannotLogin(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser("latvia", "mgr", domain.RoleSM, "correct-pass")
	if err := f.userSvc.SetUserActive(f.ctx, f.superSession("latvia"), u.ID, false); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	_, err := f.auth.Authenticate(f.ctx, "lv_mgr", "correct-pass")
	assertAuthFailure(t, err, domain.ErrInactiveUser)
}

func TestInactiveTenantRejectsLogin(t *testing.T) {
	f := newFixture(t)
	f.seedUser("latvia", "mgr", domain.RoleSM, "correct-pass")
	if err := f.tenant.SetTenantActive(f.ctx, f.superSession(""), "latvia", false); err != nil {
		t.Fatalf("deactivate tenant: %v", err)
	}
	_, err := f.auth.Authenticate(f.ctx, "lv_mgr", "correct-pass")
	assertAuthFailure(t, err, domain.ErrUnknownTenant)
}

func TestEnsureSuperAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)
	before, _ := f.creds.GetSuperAdmin(f.ctx)
	if seeded, err := f.auth.EnsureSuperAdmin(f.ctx); err != nil || seeded {
		t.Fatalf("second ensure should be a no-op, got seeded=%v err=%v", seeded, err)
	}
	after, _ := f.creds.GetSuperAdmin(f.ctx)
	if before.PasswordHash != after.PasswordHash || after.Version != before.Version {
		t.Fatalf("ensure must not overwrite an existing credential")
	}
}

func TestChangeSuperAdminPassword(t *testing.T) {
	f := newFixture(t)
	super := f.superSession("")

	if err := f.auth.ChangeSuperAdminPassword(f.ctx, super, "short"); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := f.auth.ChangeSuperAdminPassword(f.ctx, super, "brand-new-pass"); err != nil {
		t.Fatalf("change failed: %v", err)
	}
	if _, err := f.auth.Authenticate(f.ctx, "admin", superPassword); !domain.IsAuthFailure(err) {
		t.Fatalf("old password should no longer work, got %v", err)
	}
	p, err := f.auth.Authenticate(f.ctx, "admin", "brand-new-pass")
	if err != nil || p.UserID != domain.SuperAdminUserID || p.Role != domain.RoleSuperAdmin {
		t.Fatalf("new password login: %+v %v", p, err)
	}

	f.seedUser("latvia", "boss", domain.RoleAdmin, "tenant-admin-pass")
	admin := f.login("lv_boss", "tenant-admin-pass")
	if err := f.auth.ChangeSuperAdminPassword(f.ctx, admin, "hijacked-pass"); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("tenant admin must be denied, got %v", err)
	}
}
