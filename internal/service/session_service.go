package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amberops/workspace/internal/domain"
	"github.com/amberops/workspace/internal/observability/metrics"
	"github.com/amberops/workspace/internal/security"
	"github.com/amberops/workspace/internal/security/audit"
)

// TenantLookup resolves tenant IDs to active tenants
type TenantLookup interface {
	ActiveTenant(ctx context.Context, id string) (*domain.Tenant, error)
}

// EffectiveTenant returns the tenant a session operates under. Tenant-bound
// roles always get their own tenant. The super admin gets the selected
// tenant, else the login tenant, else "" (no tenant selected).
func EffectiveTenant(s *domain.Session) string {
	if s == nil || !s.IsAuthenticated {
		return ""
	}
	if s.Role != domain.RoleSuperAdmin {
		return s.AuthenticatedTenantID
	}
	if s.EffectiveTenantID != "" {
		return s.EffectiveTenantID
	}
	return s.AuthenticatedTenantID
}

// SessionService owns per-caller session state and the effective tenant
type SessionService struct {
	sessions      domain.SessionRepository
	tenants       TenantLookup
	authz         *security.AuthorizationService
	audit         *audit.Logger
	ttl           time.Duration
	defaultTenant string
	logger        *slog.Logger
	now           func() time.Time
}

// NewSessionService creates a session service. defaultTenant is the tenant
// a super admin session starts in when none is requested at login.
func NewSessionService(
	sessions domain.SessionRepository,
	tenants TenantLookup,
	authz *security.AuthorizationService,
	auditLogger *audit.Logger,
	ttl time.Duration,
	defaultTenant string,
	logger *slog.Logger,
) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		sessions:      sessions,
		tenants:       tenants,
		authz:         authz,
		audit:         auditLogger,
		ttl:           ttl,
		defaultTenant: defaultTenant,
		logger:        logger,
		now:           time.Now,
	}
}

// Start opens a session for an authenticated principal. preferredTenant is
// only honored for the super admin and only when it names an active tenant.
func (s *SessionService) Start(ctx context.Context, principal *domain.Principal, preferredTenant string) (*domain.Session, error) {
	if principal == nil {
		return nil, fmt.Errorf("%w: principal required", domain.ErrInvalidInput)
	}
	now := s.now()
	session := &domain.Session{
		ID:                    uuid.NewString(),
		PrincipalUserID:       principal.UserID,
		Login:                 principal.Login,
		DisplayName:           principal.DisplayName,
		Role:                  principal.Role,
		AuthenticatedTenantID: principal.TenantID,
		EffectiveTenantID:     principal.TenantID,
		IsAuthenticated:       true,
		CreatedAt:             now,
		ExpiresAt:             now.Add(s.ttl),
	}

	if principal.IsSuperAdmin() {
		tenantID := s.initialSuperAdminTenant(ctx, preferredTenant)
		session.AuthenticatedTenantID = tenantID
		session.EffectiveTenantID = tenantID
	}

	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return session, nil
}

func (s *SessionService) initialSuperAdminTenant(ctx context.Context, preferred string) string {
	for _, candidate := range []string{preferred, s.defaultTenant} {
		if candidate == "" {
			continue
		}
		if _, err := s.tenants.ActiveTenant(ctx, candidate); err != nil {
			s.logger.Warn("ignoring unavailable initial tenant",
				slog.String("tenant_id", candidate),
				slog.String("error", err.Error()),
			)
			continue
		}
		return candidate
	}
	return ""
}

// Get returns a live session
func (s *SessionService) Get(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, domain.ErrSessionNotFound
	}
	return s.sessions.Get(ctx, id)
}

// Logout ends a session. Unknown sessions are not an error.
func (s *SessionService) Logout(ctx context.Context, id string) error {
	session, err := s.sessions.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if session != nil {
		s.audit.LogAction(ctx, EffectiveTenant(session), session.PrincipalUserID, audit.ActionLogout, "session", id, audit.StatusSuccess, "")
		session.Clear()
	}
	return nil
}

// EffectiveTenant is the method form of the package-level EffectiveTenant
func (s *SessionService) EffectiveTenant(session *domain.Session) string {
	return EffectiveTenant(session)
}

// GetEffectiveTenant returns the effective tenant of a stored session
func (s *SessionService) GetEffectiveTenant(ctx context.Context, sessionID string) (string, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return EffectiveTenant(session), nil
}

// SwitchTenant moves a super admin session to tenantID. Any other caller,
// and any unknown or inactive tenant, is rejected and the session is left as is.
func (s *SessionService) SwitchTenant(ctx context.Context, sessionID, tenantID string) error {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if !s.authz.IsAllowed(session.Role, security.CapSwitchTenant) {
		metrics.ObserveTenantSwitch("denied")
		s.audit.LogDenied(ctx, EffectiveTenant(session), session.PrincipalUserID, "switch tenant to "+tenantID)
		return fmt.Errorf("%w: only the super administrator can switch tenants", domain.ErrPermissionDenied)
	}
	if _, err := s.tenants.ActiveTenant(ctx, tenantID); err != nil {
		metrics.ObserveTenantSwitch("unknown_tenant")
		if errors.Is(err, domain.ErrUnknownTenant) {
			return fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err)
		}
		return err
	}

	previous := EffectiveTenant(session)
	session.EffectiveTenantID = tenantID
	if err := s.sessions.Save(ctx, session); err != nil {
		metrics.ObserveTenantSwitch("error")
		return fmt.Errorf("failed to save session: %w", err)
	}
	metrics.ObserveTenantSwitch("success")
	s.audit.LogAction(ctx, tenantID, session.PrincipalUserID, audit.ActionTenantSwitched, "session", session.ID, audit.StatusSuccess, "from "+previous)
	return nil
}

// ClearTenant returns a super admin session to "no tenant selected"
func (s *SessionService) ClearTenant(ctx context.Context, sessionID string) error {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if !s.authz.IsAllowed(session.Role, security.CapSwitchTenant) {
		return fmt.Errorf("%w: only the super administrator can clear the tenant", domain.ErrPermissionDenied)
	}
	session.EffectiveTenantID = ""
	session.AuthenticatedTenantID = ""
	return s.sessions.Save(ctx, session)
}

// Capabilities lists what the session may do in its current scope
func (s *SessionService) Capabilities(session *domain.Session) []security.Capability {
	tenantID := EffectiveTenant(session)
	out := []security.Capability{}
	for _, c := range s.authz.GetRoleCapabilities(session.Role) {
		if c.TenantScoped() && tenantID == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}
