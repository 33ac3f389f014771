package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/amberops/workspace/internal/domain"
	"github.com/amberops/workspace/internal/observability/metrics"
	"github.com/amberops/workspace/internal/reliability/retry"
	"github.com/amberops/workspace/internal/security"
	"github.com/amberops/workspace/internal/security/audit"
	"github.com/amberops/workspace/internal/security/auth"
)

// UserService performs account and credential mutations inside a tenant
type UserService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	authz    *security.AuthorizationService
	hasher   auth.PasswordHasher
	policy   auth.PasswordPolicy
	audit    *audit.Logger
	retryCfg *retry.Config
	logger   *slog.Logger
}

// NewUserService creates a new user service
func NewUserService(
	users domain.UserRepository,
	sessions domain.SessionRepository,
	authz *security.AuthorizationService,
	hasher auth.PasswordHasher,
	policy auth.PasswordPolicy,
	auditLogger *audit.Logger,
	logger *slog.Logger,
) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		users:    users,
		sessions: sessions,
		authz:    authz,
		hasher:   hasher,
		policy:   policy,
		audit:    auditLogger,
		retryCfg: retry.ConflictConfig(isVersionConflict),
		logger:   logger,
	}
}

// scope authorizes actor for capability and returns its effective tenant
func (s *UserService) scope(ctx context.Context, actor *domain.Session, capability security.Capability) (string, error) {
	tenantID := EffectiveTenant(actor)
	if err := s.authz.Authorize(actor, tenantID, capability); err != nil {
		s.audit.LogDenied(ctx, tenantID, actorID(actor), string(capability))
		return "", err
	}
	return tenantID, nil
}

// CreateUser creates an active user in the actor's effective tenant
func (s *UserService) CreateUser(ctx context.Context, actor *domain.Session, in domain.UserInput) (*domain.User, error) {
	tenantID, err := s.scope(ctx, actor, security.CapManageUsers)
	if err != nil {
		metrics.ObserveUserMutation("create", "denied")
		return nil, err
	}
	if in.TenantID != "" && in.TenantID != tenantID {
		s.audit.LogDenied(ctx, tenantID, actor.PrincipalUserID, "create user in foreign tenant "+in.TenantID)
		metrics.ObserveUserMutation("create", "denied")
		return nil, fmt.Errorf("%w: users can only be created in the current tenant", domain.ErrPermissionDenied)
	}
	return s.createInTenant(ctx, actor, tenantID, in)
}

func (s *UserService) createInTenant(ctx context.Context, actor *domain.Session, tenantID string, in domain.UserInput) (*domain.User, error) {
	user, err := s.buildUser(actor, tenantID, in)
	if err != nil {
		metrics.ObserveUserMutation("create", "rejected")
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		metrics.ObserveUserMutation("create", "rejected")
		s.audit.LogUserChange(ctx, tenantID, actor.PrincipalUserID, audit.ActionUserCreated, "", audit.StatusFailure, err.Error())
		return nil, err
	}

	metrics.ObserveUserMutation("create", "success")
	s.audit.LogUserChange(ctx, tenantID, actor.PrincipalUserID, audit.ActionUserCreated, user.ID, audit.StatusSuccess, string(user.Role))
	s.logger.Info("user created",
		slog.String("tenant_id", tenantID),
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

func (s *UserService) buildUser(actor *domain.Session, tenantID string, in domain.UserInput) (*domain.User, error) {
	if !in.Role.Valid() || in.Role == domain.RoleSuperAdmin {
		return nil, fmt.Errorf("%w: role %q cannot be assigned", domain.ErrInvalidInput, in.Role)
	}
	if in.Role == domain.RoleAdmin {
		if err := s.authz.ValidatePermission(actor.Role, security.CapManageTenants); err != nil {
			return nil, err
		}
	}
	login, err := validateLogin(in.Login)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Validate(in.Password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Login:        login,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        strings.TrimSpace(in.Email),
		Role:         in.Role,
		TenantID:     tenantID,
		IsActive:     true,
		PasswordHash: hash,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	return user, nil
}

// validateLogin checks a base login: non-empty, no separator, no whitespace
func validateLogin(raw string) (string, error) {
	login := strings.TrimSpace(raw)
	if login == "" {
		return "", fmt.Errorf("%w: login is required", domain.ErrInvalidInput)
	}
	if strings.Contains(login, auth.LoginSeparator) {
		return "", fmt.Errorf("%w: login must not contain %q", domain.ErrInvalidInput, auth.LoginSeparator)
	}
	if strings.IndexFunc(login, unicode.IsSpace) >= 0 {
		return "", fmt.Errorf("%w: login must not contain spaces", domain.ErrInvalidInput)
	}
	return login, nil
}

// loadTarget fetches a user the actor may act on. Users of other tenants
// and the super admin are reported as permission errors.
func (s *UserService) loadTarget(ctx context.Context, actor *domain.Session, tenantID, userID string) (*domain.User, error) {
	if userID == domain.SuperAdminUserID {
		return nil, fmt.Errorf("%w: the super administrator cannot be modified here", domain.ErrPermissionDenied)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.ValidateTenantAccess(tenantID, u.TenantID); err != nil {
		s.audit.LogDenied(ctx, tenantID, actor.PrincipalUserID, "cross-tenant user access "+userID)
		return nil, err
	}
	if u.Role == domain.RoleSuperAdmin {
		return nil, fmt.Errorf("%w: the super administrator cannot be modified here", domain.ErrPermissionDenied)
	}
	return u, nil
}

// SetUserActive activates or deactivates a user. Repeating the current state
// is a no-op. Deactivation revokes the user's sessions.
func (s *UserService) SetUserActive(ctx context.Context, actor *domain.Session, userID string, active bool) error {
	tenantID, err := s.scope(ctx, actor, security.CapManageUsers)
	if err != nil {
		return err
	}
	if !active && userID == actor.PrincipalUserID {
		return fmt.Errorf("%w: cannot deactivate your own account", domain.ErrPermissionDenied)
	}

	op := "activate"
	action := audit.ActionUserActivated
	if !active {
		op = "deactivate"
		action = audit.ActionUserDeactivated
	}

	changed, err := retry.Do(ctx, s.retryCfg, s.logger, "set_user_active", func(ctx context.Context) (bool, error) {
		u, err := s.loadTarget(ctx, actor, tenantID, userID)
		if err != nil {
			return false, err
		}
		if u.Role == domain.RoleAdmin {
			if err := s.authz.ValidatePermission(actor.Role, security.CapManageTenants); err != nil {
				return false, err
			}
		}
		if u.IsActive == active {
			return false, nil
		}
		u.IsActive = active
		return true, s.users.Update(ctx, u)
	})
	if err != nil {
		metrics.ObserveUserMutation(op, "failed")
		s.audit.LogUserChange(ctx, tenantID, actor.PrincipalUserID, action, userID, audit.StatusFailure, err.Error())
		return err
	}
	if !changed {
		metrics.ObserveUserMutation(op, "noop")
		return nil
	}

	if !active {
		n, err := s.sessions.DeleteByUser(ctx, userID)
		if err != nil {
			s.logger.Error("failed to revoke sessions of deactivated user",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.Info("sessions revoked", slog.String("user_id", userID), slog.Int("count", n))
		}
	}
	metrics.ObserveUserMutation(op, "success")
	s.audit.LogUserChange(ctx, tenantID, actor.PrincipalUserID, action, userID, audit.StatusSuccess, "")
	return nil
}

// ResetPassword sets a new password for a user of the actor's tenant.
// Resetting another admin requires reset_admin_passwords.
func (s *UserService) ResetPassword(ctx context.Context, actor *domain.Session, userID, newPassword string) error {
	tenantID, err := s.scope(ctx, actor, security.CapManageUsers)
	if err != nil {
		return err
	}
	if err := s.policy.Validate(newPassword); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	_, err = retry.Do(ctx, s.retryCfg, s.logger, "reset_password", func(ctx context.Context) (struct{}, error) {
		u, err := s.loadTarget(ctx, actor, tenantID, userID)
		if err != nil {
			return struct{}{}, err
		}
		if u.Role == domain.RoleAdmin && u.ID != actor.PrincipalUserID {
			if err := s.authz.ValidatePermission(actor.Role, security.CapResetAdminPasswords); err != nil {
				return struct{}{}, err
			}
		}
		u.PasswordHash = hash
		return struct{}{}, s.users.Update(ctx, u)
	})
	if err != nil {
		metrics.ObserveUserMutation("reset_password", "failed")
		s.audit.LogUserChange(ctx, tenantID, actor.PrincipalUserID, audit.ActionPasswordReset, userID, audit.StatusFailure, err.Error())
		return err
	}

	if userID != actor.PrincipalUserID {
		if _, err := s.sessions.DeleteByUser(ctx, userID); err != nil {
			s.logger.Warn("failed to revoke sessions after password reset",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	metrics.ObserveUserMutation("reset_password", "success")
	s.audit.LogUserChange(ctx, tenantID, actor.PrincipalUserID, audit.ActionPasswordReset, userID, audit.StatusSuccess, "")
	return nil
}

// ListUsers returns the users of the actor's effective tenant
func (s *UserService) ListUsers(ctx context.Context, actor *domain.Session) ([]*domain.User, error) {
	tenantID, err := s.scope(ctx, actor, security.CapManageUsers)
	if err != nil {
		return nil, err
	}
	return s.users.ListByTenant(ctx, tenantID)
}
