package security

import (
	"strings"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Secret123")

	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	if hash == "Secret123" {
		t.Fatal("hash must never equal the plaintext")
	}

	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("expected a bcrypt hash, got %q", hash)
	}

	if err := CheckPassword(hash, "Secret123"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}

	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestPasswordMatches(t *testing.T) {
	hash, err := HashPassword("hunter22")

	if err != nil {
		t.Fatal(err)
	}

	if !PasswordMatches(hash, "hunter22") {
		t.Error("expected match")
	}

	if PasswordMatches(hash, "hunter2") {
		t.Error("expected mismatch")
	}
}
