package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amberops/workspace/internal/domain"
	"github.com/amberops/workspace/internal/reliability/retry"
	"github.com/amberops/workspace/internal/security"
	"github.com/amberops/workspace/internal/security/audit"
	"github.com/amberops/workspace/pkg/cache"
)

var loginPrefixPattern = regexp.MustCompile(`^[a-z]{2,8}$`)

const prefixCacheKey = "prefix:"

// TenantInput describes a tenant to create
type TenantInput struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName"`
	LoginPrefix string `json:"loginPrefix"`
}

// TenantService manages the tenant registry
type TenantService struct {
	tenants  domain.TenantRepository
	users    domain.UserRepository
	sessions domain.SessionRepository
	userSvc  *UserService
	authz    *security.AuthorizationService
	audit    *audit.Logger
	prefixes *cache.Cache[*domain.Tenant]
	cacheTTL time.Duration
	retryCfg *retry.Config
	logger   *slog.Logger
}

// NewTenantService creates a tenant service. cacheTTL bounds how long a
// prefix resolution is reused; zero disables caching.
func NewTenantService(
	tenants domain.TenantRepository,
	users domain.UserRepository,
	sessions domain.SessionRepository,
	userSvc *UserService,
	authz *security.AuthorizationService,
	auditLogger *audit.Logger,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *TenantService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantService{
		tenants:  tenants,
		users:    users,
		sessions: sessions,
		userSvc:  userSvc,
		authz:    authz,
		audit:    auditLogger,
		prefixes: cache.New[*domain.Tenant](),
		cacheTTL: cacheTTL,
		retryCfg: retry.ConflictConfig(isVersionConflict),
		logger:   logger,
	}
}

// ResolvePrefix maps a login prefix to its active tenant. Unknown or
// inactive prefixes return ErrUnknownTenant.
func (s *TenantService) ResolvePrefix(ctx context.Context, prefix string) (*domain.Tenant, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	load := func(ctx context.Context) (*domain.Tenant, error) {
		t, err := s.tenants.GetActiveByPrefix(ctx, prefix)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTenant, prefix)
		}
		return t, err
	}
	if s.cacheTTL <= 0 {
		return load(ctx)
	}
	t, err := s.prefixes.GetOrLoad(ctx, prefixCacheKey+prefix, s.cacheTTL, load)
	if err != nil {
		return nil, err
	}
	c := *t
	return &c, nil
}

// ActiveTenant returns the tenant with id if it exists and is active
func (s *TenantService) ActiveTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty tenant id", domain.ErrUnknownTenant)
	}
	t, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTenant, id)
		}
		return nil, err
	}
	if !t.IsActive {
		return nil, fmt.Errorf("%w: %s is inactive", domain.ErrUnknownTenant, id)
	}
	return t, nil
}

// CreateTenant registers a new active tenant
func (s *TenantService) CreateTenant(ctx context.Context, actor *domain.Session, in TenantInput) (*domain.Tenant, error) {
	if err := s.authz.Authorize(actor, "", security.CapManageTenants); err != nil {
		s.audit.LogDenied(ctx, "", actorID(actor), "create tenant")
		return nil, err
	}
	t, err := s.createTenant(ctx, in)
	if err != nil {
		s.audit.LogTenantChange(ctx, actor.PrincipalUserID, audit.ActionTenantCreated, in.ID, audit.StatusFailure, err.Error())
		return nil, err
	}
	s.audit.LogTenantChange(ctx, actor.PrincipalUserID, audit.ActionTenantCreated, t.ID, audit.StatusSuccess, t.LoginPrefix)
	return t, nil
}

func (s *TenantService) createTenant(ctx context.Context, in TenantInput) (*domain.Tenant, error) {
	prefix := strings.ToLower(strings.TrimSpace(in.LoginPrefix))
	if !loginPrefixPattern.MatchString(prefix) {
		return nil, fmt.Errorf("%w: login prefix must be 2-8 lowercase letters", domain.ErrInvalidInput)
	}
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		return nil, fmt.Errorf("%w: display name is required", domain.ErrInvalidInput)
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}

	t := &domain.Tenant{
		ID:          id,
		DisplayName: name,
		LoginPrefix: prefix,
		IsActive:    true,
	}
	if err := s.tenants.Create(ctx, t); err != nil {
		return nil, err
	}
	s.prefixes.Invalidate(prefixCacheKey)
	s.logger.Info("tenant created",
		slog.String("tenant_id", t.ID),
		slog.String("prefix", t.LoginPrefix),
	)
	return t, nil
}

// EnsureTenant creates in unless a tenant with the same ID exists. Used for seeding.
func (s *TenantService) EnsureTenant(ctx context.Context, in TenantInput) (*domain.Tenant, error) {
	if in.ID != "" {
		if t, err := s.tenants.GetByID(ctx, in.ID); err == nil {
			return t, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return s.createTenant(ctx, in)
}

// SetTenantActive toggles a tenant. Deactivation keeps users and history
// but revokes their sessions; reactivation re-checks prefix uniqueness.
func (s *TenantService) SetTenantActive(ctx context.Context, actor *domain.Session, tenantID string, active bool) error {
	if err := s.authz.Authorize(actor, "", security.CapManageTenants); err != nil {
		s.audit.LogDenied(ctx, tenantID, actorID(actor), "set tenant active")
		return err
	}

	changed, err := retry.Do(ctx, s.retryCfg, s.logger, "set_tenant_active", func(ctx context.Context) (bool, error) {
		t, err := s.tenants.GetByID(ctx, tenantID)
		if err != nil {
			return false, err
		}
		if t.IsActive == active {
			return false, nil
		}
		t.IsActive = active
		return true, s.tenants.Update(ctx, t)
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	s.prefixes.Invalidate(prefixCacheKey)

	action := audit.ActionTenantActivated
	if !active {
		action = audit.ActionTenantDeactivated
		s.revokeTenantSessions(ctx, tenantID)
	}
	s.audit.LogTenantChange(ctx, actor.PrincipalUserID, action, tenantID, audit.StatusSuccess, "")
	return nil
}

func (s *TenantService) revokeTenantSessions(ctx context.Context, tenantID string) {
	users, err := s.users.ListByTenant(ctx, tenantID)
	if err != nil {
		s.logger.Error("failed to list tenant users for session revocation",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
		return
	}
	total := 0
	for _, u := range users {
		n, err := s.sessions.DeleteByUser(ctx, u.ID)
		if err != nil {
			s.logger.Warn("failed to revoke sessions",
				slog.String("user_id", u.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		total += n
	}
	s.logger.Info("tenant sessions revoked", slog.String("tenant_id", tenantID), slog.Int("sessions", total))
}

// ListTenants returns every tenant, active or not
func (s *TenantService) ListTenants(ctx context.Context, actor *domain.Session) ([]*domain.Tenant, error) {
	if err := s.authz.Authorize(actor, "", security.CapManageTenants); err != nil {
		return nil, err
	}
	return s.tenants.List(ctx)
}

// CreateTenantAdmin creates an admin user inside tenantID
func (s *TenantService) CreateTenantAdmin(ctx context.Context, actor *domain.Session, tenantID string, in domain.UserInput) (*domain.User, error) {
	if err := s.authz.Authorize(actor, "", security.CapManageTenants); err != nil {
		s.audit.LogDenied(ctx, tenantID, actorID(actor), "create tenant admin")
		return nil, err
	}
	if _, err := s.ActiveTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	in.Role = domain.RoleAdmin
	return s.userSvc.createInTenant(ctx, actor, tenantID, in)
}

func isVersionConflict(err error) bool {
	return errors.Is(err, domain.ErrVersionConflict)
}

func actorID(actor *domain.Session) string {
	if actor == nil {
		return ""
	}
	return actor.PrincipalUserID
}
