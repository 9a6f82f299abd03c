package service

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestGenerateCode(t *testing.T) {
	for _, length := range []int{6, 8} {
		code, err := generateCode(length)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(code) != length {
			t.Errorf("Expected length %d, got %d", length, len(code))
		}
		for _, r := range code {
			if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
				t.Errorf("Expected upper case alphanumeric, got %q in %s", r, code)
			}
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := normalizeEmail("  Ada@Example.COM "); got != "ada@example.com" {
		t.Errorf("Expected ada@example.com, got %q", got)
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := hashPassword("Password1!", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !checkPassword(hash, "Password1!") {
		t.Error("Expected password to match its hash")
	}
	if checkPassword(hash, "password1!") {
		t.Error("Expected different password not to match")
	}
}
