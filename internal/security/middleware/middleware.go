package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amberops/workspace/internal/domain"
	"github.com/amberops/workspace/internal/security/audit"
	"github.com/amberops/workspace/internal/security/auth"
	"github.com/amberops/workspace/internal/security/ratelimit"
)

type SessionContextKey struct{}
type ClaimsContextKey struct{}

// SessionLoader fetches live sessions by ID
type SessionLoader interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
}

// JWTMiddleware validates the bearer token and loads the session it names.
// Tokens whose session was logged out, revoked or expired are rejected.
func JWTMiddleware(tm *auth.TokenManager, sessions SessionLoader, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing auth")
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid auth")
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			session, err := sessions.Get(r.Context(), claims.SessionID)
			if err != nil {
				if !errors.Is(err, domain.ErrSessionNotFound) {
					log.Error("failed to load session",
						slog.String("session_id", claims.SessionID),
						slog.String("error", err.Error()),
					)
					writeError(w, http.StatusServiceUnavailable, "session store unavailable")
					return
				}
				writeError(w, http.StatusUnauthorized, "session expired")
				return
			}
			if session.PrincipalUserID != claims.UserID || !session.IsAuthenticated {
				log.Warn("token does not match session",
					slog.String("session_id", claims.SessionID),
					slog.String("user_id", claims.UserID),
				)
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey{}, claims)
			ctx = WithSession(ctx, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware limits each session, or each client address for
// anonymous requests.
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + ClientIP(r)
			if s := GetSessionFromContext(r.Context()); s != nil {
				key = "session:" + s.ID
			}
			if !limiter.Allow(key) {
				log.Warn("rate limit exceeded", slog.String("key", key), slog.String("path", r.URL.Path))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginRateLimitMiddleware applies the strict per-address limit used for
// credential endpoints.
func LoginRateLimitMiddleware(limiter *ratelimit.Limiter, maxReqs int, window time.Duration, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if !limiter.AllowStrict("login:"+ip, maxReqs, window) {
				log.Warn("login rate limit exceeded", slog.String("client_ip", ip))
				w.Header().Set("Retry-After", retryAfter(window))
				writeError(w, http.StatusTooManyRequests, "too many login attempts")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware records every state-changing request made under a session
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodDelete {
				tenantID, userID := "", ""
				if s := GetSessionFromContext(r.Context()); s != nil {
					tenantID = s.EffectiveTenantID
					userID = s.PrincipalUserID
				}
				auditLog.LogAction(r.Context(), tenantID, userID, "request", "endpoint", r.Method+" "+r.URL.Path, "initiated", "")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithSession stores session in ctx
func WithSession(ctx context.Context, session *domain.Session) context.Context {
	return context.WithValue(ctx, SessionContextKey{}, session)
}

func GetSessionFromContext(ctx context.Context) *domain.Session {
	if s, ok := ctx.Value(SessionContextKey{}).(*domain.Session); ok {
		return s
	}
	return nil
}

func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	if c, ok := ctx.Value(ClaimsContextKey{}).(*auth.Claims); ok {
		return c
	}
	return nil
}

// ClientIP returns the caller address, preferring the first X-Forwarded-For hop
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfter(window time.Duration) string {
	secs := int(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
