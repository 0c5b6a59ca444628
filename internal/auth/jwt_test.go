package auth

import (
	"testing"
	"time"

	"github.com/PewPewSlowMo/SmartCallCenter/internal/config"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:      "test-secret",
		JWTIssuer:      "callcenter",
		JWTAudience:    "operators",
		AccessTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestIssueAndVerify(t *testing.T) {
	m := newTestManager(t)
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	tok, err := m.Issue(now, "u1", "operator")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := m.Verify(tok, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "u1" || claims.Role != "operator" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	m := newTestManager(t)
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	tok, err := m.Issue(now, "u1", "admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := m.Verify(tok, now.Add(2*time.Hour)); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	m := newTestManager(t)
	other, err := NewManager(config.AuthConfig{JWTSecret: "other-secret", AccessTokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	now := time.Now()
	tok, err := other.Issue(now, "u1", "admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := m.Verify(tok, now); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestIssue_RequiresIdentity(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Issue(time.Now(), "", "admin"); err == nil {
		t.Fatalf("expected error for empty user_id")
	}
	if _, err := m.Issue(time.Now(), "u1", ""); err == nil {
		t.Fatalf("expected error for empty role")
	}
}
