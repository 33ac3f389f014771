package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/amberops/workspace/internal/domain"
	"github.com/amberops/workspace/internal/security/middleware"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case domain.IsAuthFailure(err):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrDuplicateLogin), errors.Is(err, domain.ErrDuplicatePrefix),
		errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrWeakPassword), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownTenant):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders err. Authentication failures carry only the
// generic message and internal errors are never echoed.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := statusFor(err)
	switch {
	case domain.IsAuthFailure(err):
		writeMessage(w, status, domain.GenericAuthFailureMessage)
	case status == http.StatusInternalServerError:
		log.Error("request failed", slog.String("error", err.Error()))
		writeMessage(w, status, "internal error")
	default:
		writeMessage(w, status, err.Error())
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// currentSession returns the caller's session or writes 401
func currentSession(w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	s := middleware.GetSessionFromContext(r.Context())
	if s == nil {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return s, true
}
