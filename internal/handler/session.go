package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/amberops/workspace/internal/domain"
	"github.com/amberops/workspace/internal/security"
	"github.com/amberops/workspace/internal/service"
)

// SessionResponse describes the caller's session and what it may do
type SessionResponse struct {
	ID                    string                `json:"id"`
	UserID                string                `json:"userId"`
	Login                 string                `json:"login"`
	DisplayName           string                `json:"displayName"`
	Role                  domain.Role           `json:"role"`
	AuthenticatedTenantID string                `json:"authenticatedTenantId,omitempty"`
	EffectiveTenantID     string                `json:"effectiveTenantId,omitempty"`
	ExpiresAt             time.Time             `json:"expiresAt"`
	Capabilities          []security.Capability `json:"capabilities"`
}

func newSessionResponse(s *domain.Session, svc *service.SessionService) SessionResponse {
	return SessionResponse{
		ID:                    s.ID,
		UserID:                s.PrincipalUserID,
		Login:                 s.Login,
		DisplayName:           s.DisplayName,
		Role:                  s.Role,
		AuthenticatedTenantID: s.AuthenticatedTenantID,
		EffectiveTenantID:     svc.EffectiveTenant(s),
		ExpiresAt:             s.ExpiresAt,
		Capabilities:          svc.Capabilities(s),
	}
}

// SessionHandler exposes the session and the super admin tenant selector
type SessionHandler struct {
	sessionService *service.SessionService
	logger         *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService *service.SessionService, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{sessionService: sessionService, logger: logger}
}

// SwitchTenantRequest selects a tenant. An empty TenantID clears the selection.
type SwitchTenantRequest struct {
	TenantID string `json:"tenantId"`
}

// Get handles GET /api/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(s, h.sessionService))
}

// SwitchTenant handles POST /api/session/tenant
func (h *SessionHandler) SwitchTenant(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req SwitchTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	var err error
	if tenantID := strings.TrimSpace(req.TenantID); tenantID == "" {
		err = h.sessionService.ClearTenant(r.Context(), s.ID)
	} else {
		err = h.sessionService.SwitchTenant(r.Context(), s.ID, tenantID)
	}
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	updated, err := h.sessionService.Get(r.Context(), s.ID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(updated, h.sessionService))
}
