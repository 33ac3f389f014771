package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "")
	tok, err := tm.GenerateToken("sess-1", "user-1", "dealer", "tenant-lv", time.Minute)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	claims, err := tm.ValidateToken(tok)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.SessionID != "sess-1" || claims.UserID != "user-1" || claims.TenantID != "tenant-lv" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenRejectsOtherSecretAndExpiry(t *testing.T) {
	tok, _ := NewTokenManager("a", "").GenerateToken("s", "u", "sm", "", time.Minute)
	if _, err := NewTokenManager("b", "").ValidateToken(tok); err == nil {
		t.Fatalf("expected signature failure")
	}
	expired, _ := NewTokenManager("a", "").GenerateToken("s", "u", "sm", "", -time.Minute)
	if _, err := NewTokenManager("a", "").ValidateToken(expired); err == nil {
		t.Fatalf("expected expiry failure")
	}
	if _, err := NewTokenManager("a", "").GenerateToken("", "u", "sm", "", time.Minute); err == nil {
		t.Fatalf("expected missing session id error")
	}
}

func TestExtractToken(t *testing.T) {
	if tok, err := ExtractToken("Bearer abc"); err != nil || tok != "abc" {
		t.Fatalf("expected abc, got %q %v", tok, err)
	}
	for _, h := range []string{"", "Bearer", "Basic abc", "Bearer "} {
		if _, err := ExtractToken(h); err == nil {
			t.Errorf("expected error for %q", h)
		}
	}
}
