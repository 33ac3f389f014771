package service

import (
	"errors"
	"testing"
	"time"

	"github.com/amberops/workspace/internal/domain"
	"github.com/amberops/workspace/internal/security"
)

func TestEffectiveTenant(t *testing.T) {
	tests := []struct {
		name    string
		session *domain.Session
		want    string
	}{
		{"nil", nil, ""},
		{"unauthenticated", &domain.Session{AuthenticatedTenantID: "latvia"}, ""},
		{"tenant user ignores selection", &domain.Session{
			IsAuthenticated: true, Role: domain.RoleSM, AuthenticatedTenantID: "latvia", EffectiveTenantID: "georgia",
		}, "latvia"},
		{"super admin selection", &domain.Session{
			IsAuthenticated: true, Role: domain.RoleSuperAdmin, AuthenticatedTenantID: "latvia", EffectiveTenantID: "georgia",
		}, "georgia"},
		{"super admin falls back to login tenant", &domain.Session{
			IsAuthenticated: true, Role: domain.RoleSuperAdmin, AuthenticatedTenantID: "latvia",
		}, "latvia"},
		{"super admin without tenant", &domain.Session{
			IsAuthenticated: true, Role: domain.RoleSuperAdmin,
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveTenant(tt.session); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSuperAdminSwitchTenant(t *testing.T) {
	f := newFixture(t)
	s := f.superSession("")
	if got := EffectiveTenant(s); got != "" {
		t.Fatalf("fresh super admin session should have no tenant, got %q", got)
	}

	if err := f.session.SwitchTenant(f.ctx, s.ID, "georgia"); err != nil {
		t.Fatalf("switch failed: %v", err)
	}
	got, err := f.session.GetEffectiveTenant(f.ctx, s.ID)
	if err != nil || got != "georgia" {
		t.Fatalf("expected georgia, got %q %v", got, err)
	}

	err = f.session.SwitchTenant(f.ctx, s.ID, "nonexistent")
	if !errors.Is(err, domain.ErrPermissionDenied) || !errors.Is(err, domain.ErrUnknownTenant) {
		t.Fatalf("expected permission denied for unknown tenant, got %v", err)
	}
	got, _ = f.session.GetEffectiveTenant(f.ctx, s.ID)
	if got != "georgia" {
		t.Fatalf("failed switch must leave session untouched, got %q", got)
	}

	if err := f.session.ClearTenant(f.ctx, s.ID); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	got, _ = f.session.GetEffectiveTenant(f.ctx, s.ID)
	if got != "" {
		t.Fatalf("expected no tenant after clear, got %q", got)
	}
}

func TestSwitchToInactiveTenantIsDenied(t *testing.T) {
	f := newFixture(t)
	super := f.superSession("")
	if err := f.tenant.SetTenantActive(f.ctx, super, "poland", false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := f.session.SwitchTenant(f.ctx, super.ID, "poland"); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestTenantUserCannotSwitch(t *testing.T) {
	f := newFixture(t)
	f.seedUser("latvia", "boss", domain.RoleAdmin, "admin-pass-1")
	s := f.login("lv_boss", "admin-pass-1")

	err := f.session.SwitchTenant(f.ctx, s.ID, "georgia")
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	got, _ := f.session.GetEffectiveTenant(f.ctx, s.ID)
	if got != "latvia" {
		t.Fatalf("tenant user must stay in latvia, got %q", got)
	}
	if err := f.session.ClearTenant(f.ctx, s.ID); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied on clear, got %v", err)
	}
}

func TestStartHonorsPreferredTenantForSuperAdminOnly(t *testing.T) {
	f := newFixture(t)
	super, err := f.auth.Authenticate(f.ctx, "admin", superPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	s, err := f.session.Start(f.ctx, super, "georgia")
	if err != nil || EffectiveTenant(s) != "georgia" {
		t.Fatalf("expected georgia, got %+v %v", s, err)
	}
	s, _ = f.session.Start(f.ctx, super, "nonexistent")
	if EffectiveTenant(s) != "" {
		t.Fatalf("unknown preferred tenant must be ignored, got %q", EffectiveTenant(s))
	}

	f.seedUser("latvia", "mgr", domain.RoleSM, "manager-pass")
	p, _ := f.auth.Authenticate(f.ctx, "lv_mgr", "manager-pass")
	s, _ = f.session.Start(f.ctx, p, "georgia")
	if EffectiveTenant(s) != "latvia" {
		t.Fatalf("tenant user must start in own tenant, got %q", EffectiveTenant(s))
	}
}

func TestStartUsesDefaultTenant(t *testing.T) {
	f := newFixture(t)
	f.session.defaultTenant = "latvia"
	s := f.login("admin", superPassword)
	if EffectiveTenant(s) != "latvia" {
		t.Fatalf("expected default tenant latvia, got %q", EffectiveTenant(s))
	}
}

func TestLogoutClearsSession(t *testing.T) {
	f := newFixture(t)
	s := f.superSession("georgia")

	if err := f.session.Logout(f.ctx, s.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.session.Get(f.ctx, s.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after logout, got %v", err)
	}
	if err := f.session.Logout(f.ctx, s.ID); err != nil {
		t.Fatalf("second logout should be a no-op, got %v", err)
	}
}

func TestExpiredSessionIsGone(t *testing.T) {
	f := newFixture(t)
	s := f.superSession("")
	f.sessions.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
	if _, err := f.session.Get(f.ctx, s.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected expired session to be gone, got %v", err)
	}
}

func TestCapabilitiesWithoutTenant(t *testing.T) {
	f := newFixture(t)
	s := f.superSession("")

	caps := f.session.Capabilities(s)
	has := func(c security.Capability) bool {
		for _, got := range caps {
			if got == c {
				return true
			}
		}
		return false
	}
	if has(security.CapViewSchedules) || has(security.CapManageUsers) {
		t.Fatalf("tenant-scoped capabilities must be hidden without a tenant: %v", caps)
	}
	if !has(security.CapManageTenants) || !has(security.CapSwitchTenant) {
		t.Fatalf("platform capabilities missing: %v", caps)
	}

	_ = f.session.SwitchTenant(f.ctx, s.ID, "latvia")
	s, _ = f.session.Get(f.ctx, s.ID)
	caps = f.session.Capabilities(s)
	if !has(security.CapViewSchedules) {
		t.Fatalf("view_schedules should be available inside a tenant: %v", caps)
	}
}
