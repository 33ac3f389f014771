package security

import (
	"fmt"
	"log/slog"

	"github.com/amberops/workspace/internal/domain"
	"github.com/amberops/workspace/internal/observability/metrics"
)

// Capability is a named permission checked by the UI and the API
type Capability string

const (
	CapViewSchedules            Capability = "view_schedules"
	CapViewMistakeStatistics    Capability = "view_mistake_statistics"
	CapViewDailyMistakes        Capability = "view_daily_mistakes"
	CapViewTraining             Capability = "view_training"
	CapViewNews                 Capability = "view_news"
	CapRequestSchedule          Capability = "request_schedule"
	CapManageHandover           Capability = "manage_handover"
	CapViewAdminPanel           Capability = "view_admin_panel"
	CapManageUsers              Capability = "manage_users"
	CapImportData               Capability = "import_data"
	CapViewAuditLog             Capability = "view_audit_log"
	CapSeeAllRows               Capability = "see_all_rows"
	CapResetAdminPasswords      Capability = "reset_admin_passwords"
	CapManageTenants            Capability = "manage_tenants"
	CapSwitchTenant             Capability = "switch_tenant"
	CapChangeSuperAdminPassword Capability = "change_super_admin_password"
)

var (
	everyone  = []domain.Role{domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleSM, domain.RoleDealer, domain.RoleOperation}
	staff     = []domain.Role{domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleSM, domain.RoleOperation}
	admins    = []domain.Role{domain.RoleSuperAdmin, domain.RoleAdmin}
	superOnly = []domain.Role{domain.RoleSuperAdmin}
)

// CapabilityRoles is the complete policy. A role holds a capability only if
// it is listed here; there is no hierarchy between roles.
var CapabilityRoles = map[Capability][]domain.Role{
	CapViewSchedules:            everyone,
	CapViewMistakeStatistics:    everyone,
	CapViewDailyMistakes:        everyone,
	CapViewTraining:             everyone,
	CapRequestSchedule:          everyone,
	CapViewNews:                 staff,
	CapManageHandover:           staff,
	CapViewAdminPanel:           admins,
	CapManageUsers:              admins,
	CapImportData:               admins,
	CapViewAuditLog:             admins,
	CapSeeAllRows:               {domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleOperation},
	CapResetAdminPasswords:      superOnly,
	CapManageTenants:            superOnly,
	CapSwitchTenant:             superOnly,
	CapChangeSuperAdminPassword: superOnly,
}

// tenantScoped capabilities act on data of one tenant and need an effective tenant.
var tenantScoped = map[Capability]bool{
	CapViewSchedules:         true,
	CapViewMistakeStatistics: true,
	CapViewDailyMistakes:     true,
	CapViewTraining:          true,
	CapViewNews:              true,
	CapRequestSchedule:       true,
	CapManageHandover:        true,
	CapManageUsers:           true,
	CapImportData:            true,
	CapViewAuditLog:          true,
	CapSeeAllRows:            true,
}

type grant struct {
	role domain.Role
	cap  Capability
}

var grants = compileGrants(CapabilityRoles)

func compileGrants(matrix map[Capability][]domain.Role) map[grant]struct{} {
	out := make(map[grant]struct{})
	for c, roles := range matrix {
		for _, r := range roles {
			out[grant{role: r, cap: c}] = struct{}{}
		}
	}
	return out
}

// AllCapabilities returns every known capability
func AllCapabilities() []Capability {
	return append([]Capability(nil), orderedCapabilities...)
}

var orderedCapabilities = []Capability{
	CapViewSchedules, CapViewMistakeStatistics, CapViewDailyMistakes, CapViewTraining,
	CapViewNews, CapRequestSchedule, CapManageHandover, CapViewAdminPanel,
	CapManageUsers, CapImportData, CapViewAuditLog, CapSeeAllRows,
	CapResetAdminPasswords, CapManageTenants, CapSwitchTenant, CapChangeSuperAdminPassword,
}

// ParseCapability rejects unknown capability names
func ParseCapability(s string) (Capability, error) {
	c := Capability(s)
	if _, ok := CapabilityRoles[c]; !ok {
		return "", fmt.Errorf("%w: unknown capability %q", domain.ErrInvalidInput, s)
	}
	return c, nil
}

// TenantScoped reports whether c requires an effective tenant
func (c Capability) TenantScoped() bool {
	return tenantScoped[c]
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// IsAllowed reports whether role holds capability. Unknown roles and
// capabilities are denied.
func (as *AuthorizationService) IsAllowed(role domain.Role, capability Capability) bool {
	_, ok := grants[grant{role: role, cap: capability}]
	metrics.ObserveAuthorization(string(role), string(capability), ok)
	return ok
}

// ValidatePermission validates that a role has a specific capability
func (as *AuthorizationService) ValidatePermission(role domain.Role, capability Capability) error {
	if !as.IsAllowed(role, capability) {
		as.logger.Warn("permission denied",
			slog.String("role", string(role)),
			slog.String("capability", string(capability)),
		)
		return fmt.Errorf("%w: %s role cannot %s", domain.ErrPermissionDenied, role, capability)
	}
	return nil
}

// Authorize checks capability for a session. Tenant-scoped capabilities
// additionally need an effective tenant.
func (as *AuthorizationService) Authorize(session *domain.Session, effectiveTenantID string, capability Capability) error {
	if session == nil || !session.IsAuthenticated {
		return fmt.Errorf("%w: not authenticated", domain.ErrPermissionDenied)
	}
	if err := as.ValidatePermission(session.Role, capability); err != nil {
		return err
	}
	if capability.TenantScoped() && effectiveTenantID == "" {
		as.logger.Warn("tenant-scoped capability without tenant",
			slog.String("user_id", session.PrincipalUserID),
			slog.String("capability", string(capability)),
		)
		return fmt.Errorf("%w: %w", domain.ErrPermissionDenied, domain.ErrNoTenantSelected)
	}
	return nil
}

// GetRoleCapabilities returns all capabilities of a role, in stable order
func (as *AuthorizationService) GetRoleCapabilities(role domain.Role) []Capability {
	out := []Capability{}
	for _, c := range orderedCapabilities {
		if _, ok := grants[grant{role: role, cap: c}]; ok {
			out = append(out, c)
		}
	}
	return out
}

// ValidateTenantAccess checks that a request targets the caller's effective tenant
func (as *AuthorizationService) ValidateTenantAccess(effectiveTenantID, requestedTenantID string) error {
	if effectiveTenantID == "" || effectiveTenantID != requestedTenantID {
		as.logger.Warn("tenant access denied",
			slog.String("effective_tenant", effectiveTenantID),
			slog.String("requested_tenant", requestedTenantID),
		)
		return fmt.Errorf("%w: tenant %q is outside the current scope", domain.ErrPermissionDenied, requestedTenantID)
	}
	return nil
}
