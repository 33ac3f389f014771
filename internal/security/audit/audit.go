package audit

import (
	"context"
	"log/slog"
	"time"
)

// Actions recorded in the audit trail
const (
	ActionLogin              = "login"
	ActionLoginFailed        = "login_failed"
	ActionLogout             = "logout"
	ActionUserCreated        = "user_created"
	ActionUserActivated      = "user_activated"
	ActionUserDeactivated    = "user_deactivated"
	ActionPasswordReset      = "password_reset"
	ActionTenantCreated      = "tenant_created"
	ActionTenantActivated    = "tenant_activated"
	ActionTenantDeactivated  = "tenant_deactivated"
	ActionTenantSwitched     = "tenant_switched"
	ActionSuperAdminPassword = "super_admin_password_changed"
	ActionAccessDenied       = "access_denied"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)

type requestIDKey struct{}

// WithRequestID stores the request ID for later audit entries
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID stored in ctx, if any
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With(slog.String("component", "audit"))}
}

func (al *Logger) LogAction(ctx context.Context, tenantID, userID, action, resource, resourceID, status, details string) {
	if al == nil {
		return
	}
	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("tenant_id", tenantID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", RequestID(ctx)),
		slog.Time("timestamp", time.Now()),
	)
}

// LogLogin records a login attempt. details carries the internal failure
// reason, which is never sent to the caller.
func (al *Logger) LogLogin(ctx context.Context, tenantID, userID, login, status, details string) {
	action := ActionLogin
	if status != StatusSuccess {
		action = ActionLoginFailed
	}
	al.LogAction(ctx, tenantID, userID, action, "session", login, status, details)
}

func (al *Logger) LogUserChange(ctx context.Context, tenantID, actorID, action, targetUserID, status, details string) {
	al.LogAction(ctx, tenantID, actorID, action, "user", targetUserID, status, details)
}

func (al *Logger) LogTenantChange(ctx context.Context, actorID, action, tenantID, status, details string) {
	al.LogAction(ctx, tenantID, actorID, action, "tenant", tenantID, status, details)
}

func (al *Logger) LogDenied(ctx context.Context, tenantID, userID, reason string) {
	al.LogAction(ctx, tenantID, userID, ActionAccessDenied, "api", "", StatusDenied, reason)
}
