package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/amberops/workspace/internal/domain"
	"github.com/amberops/workspace/internal/security/auth"
	"github.com/amberops/workspace/internal/service"
)

// AuthHandler handles login, logout and the super admin credential
type AuthHandler struct {
	authService    *service.AuthService
	sessionService *service.SessionService
	tokenManager   *auth.TokenManager
	tokenTTL       time.Duration
	logger         *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	authService *service.AuthService,
	sessionService *service.SessionService,
	tokenManager *auth.TokenManager,
	tokenTTL time.Duration,
	logger *slog.Logger,
) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthHandler{
		authService:    authService,
		sessionService: sessionService,
		tokenManager:   tokenManager,
		tokenTTL:       tokenTTL,
		logger:         logger,
	}
}

// LoginRequest represents login credentials. Tenant is only honored for the
// super administrator.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Tenant   string `json:"tenant,omitempty"`
}

// LoginResponse contains the JWT token and the resulting session
type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Session   SessionResponse `json:"session"`
}

// PasswordRequest carries a new password
type PasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.Warn("failed to decode login request", slog.String("error", err.Error()))
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Login == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "login and password are required")
		return
	}

	principal, err := h.authService.Authenticate(r.Context(), req.Login, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	session, err := h.sessionService.Start(r.Context(), principal, req.Tenant)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	token, err := h.tokenManager.GenerateToken(session.ID, principal.UserID, string(principal.Role), principal.TenantID, h.tokenTTL)
	if err != nil {
		h.logger.Error("failed to generate token",
			slog.String("user_id", principal.UserID),
			slog.String("error", err.Error()),
		)
		_ = h.sessionService.Logout(r.Context(), session.ID)
		writeMessage(w, http.StatusInternalServerError, "token generation failed")
		return
	}

	h.logger.Info("user logged in",
		slog.String("user_id", principal.UserID),
		slog.String("tenant_id", session.EffectiveTenantID),
		slog.String("role", string(principal.Role)),
	)

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		Session:   h.describe(session),
	})
}

func (h *AuthHandler) describe(s *domain.Session) SessionResponse {
	return newSessionResponse(s, h.sessionService)
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	if err := h.sessionService.Logout(r.Context(), s.ID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangeSuperAdminPassword handles POST /api/auth/super-admin/password
func (h *AuthHandler) ChangeSuperAdminPassword(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req PasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := h.authService.ChangeSuperAdminPassword(r.Context(), s, req.NewPassword); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
