package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amberops/workspace/internal/domain"
	"github.com/amberops/workspace/internal/repository/memory"
	"github.com/amberops/workspace/internal/security/auth"
	"github.com/amberops/workspace/internal/security/ratelimit"
)

func sessionEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := GetSessionFromContext(r.Context())
		if s == nil {
			t.Fatalf("session missing from context")
		}
		if c := GetClaimsFromContext(r.Context()); c == nil || c.SessionID != s.ID {
			t.Fatalf("expected claims for session %s, got %+v", s.ID, c)
		}
		_, _ = w.Write([]byte(s.ID))
	})
}

func TestJWTMiddleware(t *testing.T) {
	ctx := context.Background()
	tm := auth.NewTokenManager("test-secret", "")
	sessions := memory.NewSessionRepository()
	_ = sessions.Save(ctx, &domain.Session{
		ID: "s1", PrincipalUserID: "u1", Role: domain.RoleSM, AuthenticatedTenantID: "latvia",
		IsAuthenticated: true, ExpiresAt: time.Now().Add(time.Hour),
	})
	h := JWTMiddleware(tm, sessions, nil)(sessionEcho(t))

	valid, _ := tm.GenerateToken("s1", "u1", "sm", "latvia", time.Hour)
	wrongUser, _ := tm.GenerateToken("s1", "u2", "sm", "latvia", time.Hour)
	unknown, _ := tm.GenerateToken("gone", "u1", "sm", "latvia", time.Hour)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"user mismatch", "Bearer " + wrongUser, http.StatusUnauthorized},
		{"unknown session", "Bearer " + unknown, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d (%s)", tt.want, rec.Code, rec.Body.String())
			}
		})
	}

	// logout invalidates an otherwise valid token
	_ = sessions.Delete(ctx, "s1")
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer "+valid)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestLoginRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewLimiter(100, time.Minute)
	defer limiter.Stop()
	h := LoginRateLimitMiddleware(limiter, 2, time.Minute, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.1.1.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	// a different address has its own budget
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "10.1.1.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for another client, got %d", rec.Code)
	}
}

func TestRequireJSONFields(t *testing.T) {
	var got string
	h := RequireJSONFields(nil, "login", "password")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, r.Body)
		got = buf.String()
	}))

	body := `{"login":"lv_mgr","password":"x"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	if rec.Code != http.StatusOK || got != body {
		t.Fatalf("expected pass-through with body intact, got %d %q", rec.Code, got)
	}

	for _, bad := range []string{`{"login":"x"}`, `not json`, `[]`} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(bad)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %q, got %d", bad, rec.Code)
		}
	}
}

func TestValidateJSONContentType(t *testing.T) {
	h := ValidateJSONContentType(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := ClientIP(req); got != "192.0.2.1" {
		t.Fatalf("expected 192.0.2.1, got %s", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("expected forwarded address, got %s", got)
	}
}
