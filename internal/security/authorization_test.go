package security

import (
	"errors"
	"testing"

	"github.com/amberops/workspace/internal/domain"
)

func TestIsAllowedMatrix(t *testing.T) {
	as := NewAuthorizationService(nil)
	cases := []struct {
		role domain.Role
		cap  Capability
		want bool
	}{
		{domain.RoleDealer, CapViewSchedules, true},
		{domain.RoleDealer, CapViewNews, false},
		{domain.RoleDealer, CapManageHandover, false},
		{domain.RoleOperation, CapViewNews, true},
		{domain.RoleOperation, CapSeeAllRows, true},
		{domain.RoleSM, CapSeeAllRows, false},
		{domain.RoleSM, CapManageUsers, false},
		{domain.RoleAdmin, CapManageUsers, true},
		{domain.RoleAdmin, CapImportData, true},
		{domain.RoleAdmin, CapManageTenants, false},
		{domain.RoleAdmin, CapSwitchTenant, false},
		{domain.RoleAdmin, CapResetAdminPasswords, false},
		{domain.RoleSuperAdmin, CapManageTenants, true},
		{domain.RoleSuperAdmin, CapChangeSuperAdminPassword, true},
		{domain.Role("root"), CapViewSchedules, false},
		{domain.RoleSuperAdmin, Capability("launch_missiles"), false},
	}
	for _, tc := range cases {
		if got := as.IsAllowed(tc.role, tc.cap); got != tc.want {
			t.Errorf("IsAllowed(%s, %s) = %v, want %v", tc.role, tc.cap, got, tc.want)
		}
	}
}

func TestTenantManagementIsSuperAdminOnly(t *testing.T) {
	as := NewAuthorizationService(nil)
	for _, c := range []Capability{CapManageTenants, CapSwitchTenant, CapChangeSuperAdminPassword, CapResetAdminPasswords} {
		for _, r := range domain.AllRoles {
			if got := as.IsAllowed(r, c); got != (r == domain.RoleSuperAdmin) {
				t.Errorf("IsAllowed(%s, %s) = %v", r, c, got)
			}
		}
	}
}

func TestEveryCapabilityIsOrdered(t *testing.T) {
	if len(AllCapabilities()) != len(CapabilityRoles) {
		t.Fatalf("ordered list has %d entries, matrix has %d", len(AllCapabilities()), len(CapabilityRoles))
	}
	for _, c := range AllCapabilities() {
		if _, err := ParseCapability(string(c)); err != nil {
			t.Errorf("capability %s not parseable: %v", c, err)
		}
	}
	if _, err := ParseCapability("nope"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestValidatePermission(t *testing.T) {
	as := NewAuthorizationService(nil)
	if err := as.ValidatePermission(domain.RoleSM, CapManageUsers); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if err := as.ValidatePermission(domain.RoleAdmin, CapManageUsers); err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
}

func TestAuthorizeRequiresTenantForScopedCapabilities(t *testing.T) {
	as := NewAuthorizationService(nil)
	super := &domain.Session{PrincipalUserID: domain.SuperAdminUserID, Role: domain.RoleSuperAdmin, IsAuthenticated: true}

	err := as.Authorize(super, "", CapImportData)
	if !errors.Is(err, domain.ErrNoTenantSelected) || !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected no-tenant denial, got %v", err)
	}
	if err := as.Authorize(super, "", CapManageTenants); err != nil {
		t.Fatalf("tenant-agnostic capability should pass without tenant: %v", err)
	}
	if err := as.Authorize(super, "latvia", CapImportData); err != nil {
		t.Fatalf("expected allow with tenant, got %v", err)
	}
	if err := as.Authorize(&domain.Session{Role: domain.RoleAdmin}, "latvia", CapManageUsers); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("unauthenticated session must be denied, got %v", err)
	}
	if err := as.Authorize(nil, "latvia", CapViewSchedules); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("nil session must be denied, got %v", err)
	}
}

func TestGetRoleCapabilities(t *testing.T) {
	as := NewAuthorizationService(nil)
	caps := as.GetRoleCapabilities(domain.RoleDealer)
	for _, c := range caps {
		if c == CapViewNews {
			t.Fatalf("dealer must not hold view_news")
		}
	}
	if len(as.GetRoleCapabilities(domain.RoleSuperAdmin)) != len(CapabilityRoles) {
		t.Fatalf("super admin should hold every capability")
	}
}

func TestValidateTenantAccess(t *testing.T) {
	as := NewAuthorizationService(nil)
	if err := as.ValidateTenantAccess("latvia", "latvia"); err != nil {
		t.Fatalf("same tenant should pass: %v", err)
	}
	if err := as.ValidateTenantAccess("latvia", "georgia"); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("cross-tenant access should be denied, got %v", err)
	}
	if err := as.ValidateTenantAccess("", ""); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("empty scope should be denied, got %v", err)
	}
}
