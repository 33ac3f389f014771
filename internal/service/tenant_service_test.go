package service

import (
	"errors"
	"testing"

	"github.com/amberops/workspace/internal/domain"
)

func TestCreateTenantAndLogin(t *testing.T) {
	f := newFixture(t)
	super := f.superSession("")

	tenant, err := f.tenant.CreateTenant(f.ctx, super, TenantInput{ID: "colombia", DisplayName: "Colombia", LoginPrefix: "CO"})
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	if tenant.LoginPrefix != "co" || !tenant.IsActive {
		t.Fatalf("unexpected tenant %+v", tenant)
	}

	admin, err := f.tenant.CreateTenantAdmin(f.ctx, super, "colombia", domain.UserInput{
		Login: "jefe", Password: "colombia-pass", Role: domain.RoleDealer,
	})
	if err != nil {
		t.Fatalf("create tenant admin: %v", err)
	}
	if admin.Role != domain.RoleAdmin || admin.TenantID != "colombia" {
		t.Fatalf("unexpected admin %+v", admin)
	}
	p, err := f.auth.Authenticate(f.ctx, "co_jefe", "colombia-pass")
	if err != nil || p.TenantID != "colombia" || p.Role != domain.RoleAdmin {
		t.Fatalf("tenant admin login: %+v %v", p, err)
	}
}

func TestCreateTenantValidation(t *testing.T) {
	f := newFixture(t)
	super := f.superSession("")

	tests := []struct {
		name string
		in   TenantInput
		want error
	}{
		{"duplicate prefix", TenantInput{DisplayName: "Latvia 2", LoginPrefix: "lv"}, domain.ErrDuplicatePrefix},
		{"prefix with digits", TenantInput{DisplayName: "X", LoginPrefix: "x1"}, domain.ErrInvalidInput},
		{"prefix with separator", TenantInput{DisplayName: "X", LoginPrefix: "a_b"}, domain.ErrInvalidInput},
		{"missing name", TenantInput{LoginPrefix: "xy"}, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.tenant.CreateTenant(f.ctx, super, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestTenantManagementIsSuperAdminOnly(t *testing.T) {
	f := newFixture(t)
	f.seedUser("latvia", "boss", domain.RoleAdmin, "admin-pass-1")
	admin := f.login("lv_boss", "admin-pass-1")

	if _, err := f.tenant.CreateTenant(f.ctx, admin, TenantInput{DisplayName: "X", LoginPrefix: "xy"}); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if err := f.tenant.SetTenantActive(f.ctx, admin, "georgia", false); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if _, err := f.tenant.ListTenants(f.ctx, admin); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if _, err := f.tenant.CreateTenantAdmin(f.ctx, admin, "georgia", domain.UserInput{Login: "x", Password: "xxxxxxxx"}); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestTenantDeactivationRevokesSessionsAndFreesPrefix(t *testing.T) {
	f := newFixture(t)
	super := f.superSession("")
	f.seedUser("latvia", "mgr", domain.RoleSM, "manager-pass")
	s := f.login("lv_mgr", "manager-pass")

	// warm the prefix cache
	if _, err := f.tenant.ResolvePrefix(f.ctx, "lv"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := f.tenant.SetTenantActive(f.ctx, super, "latvia", false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := f.tenant.SetTenantActive(f.ctx, super, "latvia", false); err != nil {
		t.Fatalf("repeat deactivate should be a no-op: %v", err)
	}
	if _, err := f.tenant.ResolvePrefix(f.ctx, "lv"); !errors.Is(err, domain.ErrUnknownTenant) {
		t.Fatalf("inactive prefix should be unknown, got %v", err)
	}
	if _, err := f.session.Get(f.ctx, s.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("tenant sessions should be revoked, got %v", err)
	}

	// the prefix can be reused while latvia is inactive
	if _, err := f.tenant.CreateTenant(f.ctx, super, TenantInput{ID: "lv2", DisplayName: "Latvia New", LoginPrefix: "lv"}); err != nil {
		t.Fatalf("reuse prefix: %v", err)
	}
	if err := f.tenant.SetTenantActive(f.ctx, super, "latvia", true); !errors.Is(err, domain.ErrDuplicatePrefix) {
		t.Fatalf("reactivation with a taken prefix should fail, got %v", err)
	}
}

func TestListTenantsIncludesInactive(t *testing.T) {
	f := newFixture(t)
	super := f.superSession("")
	_ = f.tenant.SetTenantActive(f.ctx, super, "poland", false)

	tenants, err := f.tenant.ListTenants(f.ctx, super)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tenants) != 3 {
		t.Fatalf("expected 3 tenants, got %d", len(tenants))
	}
}

func TestEnsureTenantIsIdempotent(t *testing.T) {
	f := newFixture(t)
	again, err := f.tenant.EnsureTenant(f.ctx, TenantInput{ID: "latvia", DisplayName: "Renamed", LoginPrefix: "lv"})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if again.DisplayName != "Latvia" {
		t.Fatalf("existing tenant must not be overwritten, got %q", again.DisplayName)
	}
}
