package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amberops/workspace/internal/service"
)

// TenantHandler handles the tenant registry. Every route is super admin only.
type TenantHandler struct {
	tenantService *service.TenantService
	logger        *slog.Logger
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(tenantService *service.TenantService, logger *slog.Logger) *TenantHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantHandler{tenantService: tenantService, logger: logger}
}

// List handles GET /api/tenants
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	tenants, err := h.tenantService.ListTenants(r.Context(), s)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tenants)
}

// Create handles POST /api/tenants
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req service.TenantInput
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}
	t, err := h.tenantService.CreateTenant(r.Context(), s, req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// SetActive handles PUT /api/tenants/{id}/active
func (h *TenantHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req ActiveRequest
	if err := decodeJSON(r, &req); err != nil || req.Active == nil {
		writeMessage(w, http.StatusBadRequest, "active is required")
		return
	}
	if err := h.tenantService.SetTenantActive(r.Context(), s, chi.URLParam(r, "id"), *req.Active); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateAdmin handles POST /api/tenants/{id}/admins
func (h *TenantHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}
	u, err := h.tenantService.CreateTenantAdmin(r.Context(), s, chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserResponse(u))
}
