package domain

import (
	"context"
	"time"
)

// Session is the server-side state of one logged-in caller
type Session struct {
	ID                    string    `json:"id"`
	PrincipalUserID       string    `json:"principalUserId"`
	Login                 string    `json:"login"`
	DisplayName           string    `json:"displayName"`
	Role                  Role      `json:"role"`
	AuthenticatedTenantID string    `json:"authenticatedTenantId,omitempty"`
	EffectiveTenantID     string    `json:"effectiveTenantId,omitempty"` // only moves for the super admin
	IsAuthenticated       bool      `json:"isAuthenticated"`
	CreatedAt             time.Time `json:"createdAt"`
	ExpiresAt             time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Clear wipes every field, used on logout
func (s *Session) Clear() {
	*s = Session{}
}

// SessionRepository stores sessions. Implementations must honor ExpiresAt.
type SessionRepository interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int, error)
}
