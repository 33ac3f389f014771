package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amberops/workspace/internal/security"
	"github.com/amberops/workspace/internal/service"
)

// AuthzHandler answers capability and data-category questions for the caller
type AuthzHandler struct {
	authz  *security.AuthorizationService
	data   *security.DataAccessService
	logger *slog.Logger
}

func NewAuthzHandler(authz *security.AuthorizationService, data *security.DataAccessService, logger *slog.Logger) *AuthzHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthzHandler{authz: authz, data: data, logger: logger}
}

// DecisionResponse is the answer to a permission question
type DecisionResponse struct {
	Subject  string `json:"subject"`
	TenantID string `json:"tenantId,omitempty"`
	Allowed  bool   `json:"allowed"`
	Reason   string `json:"reason,omitempty"`
}

// Capability handles GET /api/authz/capabilities/{capability}
func (h *AuthzHandler) Capability(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	capability, err := security.ParseCapability(chi.URLParam(r, "capability"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	tenantID := service.EffectiveTenant(s)
	resp := DecisionResponse{Subject: string(capability), TenantID: tenantID, Allowed: true}
	if err := h.authz.Authorize(s, tenantID, capability); err != nil {
		resp.Allowed = false
		resp.Reason = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Category handles GET /api/authz/categories/{category}
func (h *AuthzHandler) Category(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	category := chi.URLParam(r, "category")
	writeJSON(w, http.StatusOK, DecisionResponse{
		Subject:  category,
		TenantID: service.EffectiveTenant(s),
		Allowed:  h.data.CanAccessDataCategory(s.Role, category),
	})
}

// TrainingAudiences handles GET /api/authz/training-audiences
func (h *AuthzHandler) TrainingAudiences(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audiences": h.data.TrainingAudiences(s.Role)})
}
