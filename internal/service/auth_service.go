package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amberops/workspace/internal/domain"
	"github.com/amberops/workspace/internal/observability/metrics"
	"github.com/amberops/workspace/internal/reliability/retry"
	"github.com/amberops/workspace/internal/security"
	"github.com/amberops/workspace/internal/security/audit"
	"github.com/amberops/workspace/internal/security/auth"
)

// PrefixResolver maps login prefixes to active tenants
type PrefixResolver interface {
	ResolvePrefix(ctx context.Context, prefix string) (*domain.Tenant, error)
}

// AuthService handles authentication and the super administrator credential
type AuthService struct {
	resolver          *auth.Resolver
	tenants           PrefixResolver
	users             domain.UserRepository
	creds             domain.CredentialRepository
	hasher            auth.PasswordHasher
	policy            auth.PasswordPolicy
	authz             *security.AuthorizationService
	audit             *audit.Logger
	bootstrapPassword string
	dummyHash         string
	retryCfg          *retry.Config
	logger            *slog.Logger
	now               func() time.Time
}

// AuthConfig holds the authentication settings
type AuthConfig struct {
	ReservedLogin     string
	BootstrapPassword string
	Policy            auth.PasswordPolicy
}

// NewAuthService creates a new authentication service
func NewAuthService(
	cfg AuthConfig,
	tenants PrefixResolver,
	users domain.UserRepository,
	creds domain.CredentialRepository,
	hasher auth.PasswordHasher,
	authz *security.AuthorizationService,
	auditLogger *audit.Logger,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &AuthService{
		resolver:          auth.NewResolver(cfg.ReservedLogin),
		tenants:           tenants,
		users:             users,
		creds:             creds,
		hasher:            hasher,
		policy:            cfg.Policy,
		authz:             authz,
		audit:             auditLogger,
		bootstrapPassword: cfg.BootstrapPassword,
		retryCfg:          retry.ConflictConfig(isVersionConflict),
		logger:            logger,
		now:               time.Now,
	}
	// Unknown and inactive users still pay for one hash comparison.
	if h, err := hasher.Hash("workspace-timing-equalizer"); err == nil {
		s.dummyHash = h
	}
	return s
}

// Authenticate verifies a raw login and password. Every credential failure
// is an *domain.AuthFailure whose message is the same generic text.
func (s *AuthService) Authenticate(ctx context.Context, rawLogin, password string) (*domain.Principal, error) {
	start := s.now()
	res := s.resolver.Resolve(rawLogin)

	principal, tenantID, err := s.authenticate(ctx, res, password)

	kind := "tenant"
	switch {
	case res.IsSuperAdminCandidate:
		kind = "super_admin"
	case !res.Prefixed():
		kind = "unresolved"
	}

	if err != nil {
		reason := failureReason(err)
		metrics.ObserveAuthentication(kind, reason, time.Since(start))
		s.audit.LogLogin(ctx, tenantID, "", rawLogin, audit.StatusFailure, reason)
		s.logger.Info("authentication failed",
			slog.String("kind", kind),
			slog.String("tenant_id", tenantID),
			slog.String("reason", reason),
		)
		return nil, err
	}

	metrics.ObserveAuthentication(kind, "success", time.Since(start))
	s.audit.LogLogin(ctx, principal.TenantID, principal.UserID, rawLogin, audit.StatusSuccess, "")
	return principal, nil
}

func (s *AuthService) authenticate(ctx context.Context, res auth.Resolution, password string) (*domain.Principal, string, error) {
	if res.Ambiguous {
		return nil, "", domain.NewAuthFailure(domain.ErrAmbiguousLogin)
	}

	if res.IsSuperAdminCandidate {
		p, err := s.authenticateSuperAdmin(ctx, password)
		if err == nil {
			return p, "", nil
		}
		if !errors.Is(err, domain.ErrBadPassword) {
			return nil, "", err
		}
		// The reserved name never carries a prefix, so there is no tenant
		// account to fall through to.
	}

	if !res.Prefixed() {
		if res.IsSuperAdminCandidate {
			return nil, "", domain.NewAuthFailure(domain.ErrBadPassword)
		}
		return nil, "", domain.NewAuthFailure(domain.ErrUnknownTenant)
	}

	tenant, err := s.tenants.ResolvePrefix(ctx, res.TenantPrefix)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownTenant) {
			s.burnHash(password)
			return nil, "", domain.NewAuthFailure(domain.ErrUnknownTenant)
		}
		return nil, "", fmt.Errorf("resolve tenant: %w", err)
	}

	user, err := s.users.GetByLogin(ctx, tenant.ID, res.BaseLogin)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.burnHash(password)
			return nil, tenant.ID, domain.NewAuthFailure(domain.ErrNoSuchUser)
		}
		return nil, tenant.ID, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		s.burnHash(password)
		return nil, tenant.ID, domain.NewAuthFailure(domain.ErrInactiveUser)
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, domain.ErrBadPassword) {
			return nil, tenant.ID, domain.NewAuthFailure(domain.ErrBadPassword)
		}
		return nil, tenant.ID, err
	}

	if err := s.users.RecordLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn("failed to record last login",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	return user.Principal(), tenant.ID, nil
}

func (s *AuthService) authenticateSuperAdmin(ctx context.Context, password string) (*domain.Principal, error) {
	cred, err := s.creds.GetSuperAdmin(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.burnHash(password)
			return nil, domain.ErrBadPassword
		}
		return nil, fmt.Errorf("load super admin credential: %w", err)
	}
	if err := s.hasher.Compare(cred.PasswordHash, password); err != nil {
		return nil, err
	}
	return &domain.Principal{
		UserID:      domain.SuperAdminUserID,
		Login:       s.resolver.Reserved(),
		DisplayName: "Super Administrator",
		Role:        domain.RoleSuperAdmin,
	}, nil
}

func (s *AuthService) burnHash(password string) {
	if s.dummyHash != "" {
		_ = s.hasher.Compare(s.dummyHash, password)
	}
}

// EnsureSuperAdmin seeds the super admin credential from the bootstrap
// password when none is stored yet. It reports whether this call seeded it.
func (s *AuthService) EnsureSuperAdmin(ctx context.Context) (bool, error) {
	_, err := s.creds.GetSuperAdmin(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("load super admin credential: %w", err)
	}
	if s.bootstrapPassword == "" {
		return false, fmt.Errorf("%w: bootstrap password is required to seed the super administrator", domain.ErrInvalidInput)
	}
	if err := s.policy.Validate(s.bootstrapPassword); err != nil {
		return false, fmt.Errorf("bootstrap password: %w", err)
	}
	hash, err := s.hasher.Hash(s.bootstrapPassword)
	if err != nil {
		return false, err
	}
	err = s.creds.CreateSuperAdmin(ctx, &domain.Credential{PasswordHash: hash})
	if errors.Is(err, domain.ErrVersionConflict) {
		// another instance seeded it first
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.logger.Info("super administrator credential seeded")
	return true, nil
}

// ChangeSuperAdminPassword replaces the super admin credential. Only the
// super admin may call it.
func (s *AuthService) ChangeSuperAdminPassword(ctx context.Context, actor *domain.Session, newPassword string) error {
	if err := s.authz.Authorize(actor, "", security.CapChangeSuperAdminPassword); err != nil {
		s.audit.LogDenied(ctx, EffectiveTenant(actor), actorID(actor), "change super admin password")
		metrics.ObserveUserMutation("super_admin_password", "denied")
		return err
	}
	if err := s.policy.Validate(newPassword); err != nil {
		metrics.ObserveUserMutation("super_admin_password", "rejected")
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	_, err = retry.Do(ctx, s.retryCfg, s.logger, "change_super_admin_password", func(ctx context.Context) (struct{}, error) {
		cred, err := s.creds.GetSuperAdmin(ctx)
		if err != nil {
			return struct{}{}, err
		}
		cred.PasswordHash = hash
		return struct{}{}, s.creds.ReplaceSuperAdmin(ctx, cred)
	})
	if err != nil {
		metrics.ObserveUserMutation("super_admin_password", "failed")
		s.audit.LogAction(ctx, "", actor.PrincipalUserID, audit.ActionSuperAdminPassword, "credential", domain.SuperAdminUserID, audit.StatusFailure, err.Error())
		return err
	}
	metrics.ObserveUserMutation("super_admin_password", "success")
	s.audit.LogAction(ctx, "", actor.PrincipalUserID, audit.ActionSuperAdminPassword, "credential", domain.SuperAdminUserID, audit.StatusSuccess, "")
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrAmbiguousLogin):
		return "ambiguous_login"
	case errors.Is(err, domain.ErrUnknownTenant):
		return "unknown_tenant"
	case errors.Is(err, domain.ErrNoSuchUser):
		return "no_such_user"
	case errors.Is(err, domain.ErrInactiveUser):
		return "inactive_user"
	case errors.Is(err, domain.ErrBadPassword):
		return "bad_password"
	default:
		return "error"
	}
}
