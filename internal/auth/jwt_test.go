package auth

import (
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	token, expiresAt, err := m.Issue("user-1", "ada@example.com", "user")

	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if !expiresAt.After(time.Now()) {
		t.Fatalf("expiry should be in the future, got %v", expiresAt)
	}

	claims, err := m.Verify(token)

	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if claims.UserID != "user-1" {
		t.Errorf("expected user-1, got %q", claims.UserID)
	}

	if claims.Email != "ada@example.com" {
		t.Errorf("expected email claim, got %q", claims.Email)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewManager("secret-a", time.Hour)
	verifier := NewManager("secret-b", time.Hour)

	token, _, err := issuer.Issue("user-1", "a@b.com", "user")

	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	_, err = verifier.Verify(token)

	if err == nil {
		t.Fatal("expected verification to fail for a foreign signature")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := NewManager("test-secret", -time.Minute)

	token, _, err := m.Issue("user-1", "a@b.com", "user")

	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	_, err = m.Verify(token)

	if err == nil {
		t.Fatal("expected verification to fail for an expired token")
	}
}

func TestVerifyRejectsMalformedToken(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	for _, tok := range []string{"", "garbage", "a.b.c"} {
		_, err := m.Verify(tok)

		if err == nil {
			t.Errorf("expected failure for token %q", tok)
		}
	}
}
