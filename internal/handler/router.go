package handler

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amberops/workspace/internal/observability/metrics"
	"github.com/amberops/workspace/internal/security/audit"
	"github.com/amberops/workspace/internal/security/auth"
	"github.com/amberops/workspace/internal/security/middleware"
	"github.com/amberops/workspace/internal/security/ratelimit"
)

// RouterConfig collects everything the HTTP surface depends on
type RouterConfig struct {
	Auth     *AuthHandler
	Session  *SessionHandler
	Authz    *AuthzHandler
	Users    *UserHandler
	Tenants  *TenantHandler
	Health   *HealthHandler
	Tokens   *auth.TokenManager
	Sessions middleware.SessionLoader
	Audit    *audit.Logger

	APILimiter     *ratelimit.Limiter
	LoginLimiter   *ratelimit.Limiter
	LoginRateLimit int
	LoginWindow    time.Duration
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter wires the public and session-protected routes.
// Chain: request ID -> CORS -> metrics -> sanitize -> (JWT -> rate limit -> audit).
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler { return withRequestID(next, log) })
	r.Use(corsMiddleware(cfg.AllowedOrigins))
	r.Use(metrics.HTTPMetricsMiddleware)

	r.Get("/healthz", cfg.Health.Health)
	r.Get("/readyz", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.SanitizeInputs(log))
		r.Use(middleware.ValidateJSONContentType(log))

		r.With(
			middleware.LoginRateLimitMiddleware(cfg.LoginLimiter, cfg.LoginRateLimit, cfg.LoginWindow, log),
			middleware.RequireJSONFields(log, "login", "password"),
		).Post("/auth/login", cfg.Auth.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTMiddleware(cfg.Tokens, cfg.Sessions, log))
			r.Use(middleware.RateLimitMiddleware(cfg.APILimiter, log))
			r.Use(middleware.AuditMiddleware(cfg.Audit))

			r.Post("/auth/logout", cfg.Auth.Logout)
			r.With(middleware.RequireJSONFields(log, "newPassword")).
				Post("/auth/super-admin/password", cfg.Auth.ChangeSuperAdminPassword)

			r.Get("/session", cfg.Session.Get)
			r.Post("/session/tenant", cfg.Session.SwitchTenant)

			r.Get("/authz/capabilities/{capability}", cfg.Authz.Capability)
			r.Get("/authz/categories/{category}", cfg.Authz.Category)
			r.Get("/authz/training-audiences", cfg.Authz.TrainingAudiences)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", cfg.Users.List)
				r.Post("/", cfg.Users.Create)
				r.Put("/{id}/active", cfg.Users.SetActive)
				r.With(middleware.RequireJSONFields(log, "newPassword")).
					Post("/{id}/password", cfg.Users.ResetPassword)
			})

			r.Route("/tenants", func(r chi.Router) {
				r.Get("/", cfg.Tenants.List)
				r.Post("/", cfg.Tenants.Create)
				r.Put("/{id}/active", cfg.Tenants.SetActive)
				r.Post("/{id}/admins", cfg.Tenants.CreateAdmin)
			})
		})
	})
	return r
}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" || len(reqID) > 64 {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)

		ctx := audit.WithRequestID(r.Context(), reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

// corsMiddleware honors the configured origins
func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if originAllowed(allowed, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			} else if len(allowed) > 0 && allowed[0] != "*" {
				w.Header().Set("Access-Control-Allow-Origin", allowed[0])
			}
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-Request-ID")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
