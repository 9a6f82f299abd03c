package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid credentials", ErrInvalidCredentials, http.StatusUnauthorized},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"conflict", ErrEmailExists, http.StatusConflict},
		{"bad verification code", ErrInvalidEmailValidationToken, http.StatusBadRequest},
		{"bad reset code", ErrInvalidResetToken, http.StatusBadRequest},
		{"wrong old password", ErrIncorrectPassword, http.StatusBadRequest},
		{"validation", NewValidationError("email", "email must be a valid email"), http.StatusUnprocessableEntity},
		{"wrapped internal", WrapError(ErrInternal, errors.New("db down")), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"fmt wrapped domain", fmt.Errorf("login: %w", ErrInvalidCredentials), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestGetErrorMessage_HidesInternalDetail(t *testing.T) {
	err := WrapError(ErrInternal, errors.New("pq: connection refused"))

	if got := GetErrorMessage(err); got != "Something went wrong" {
		t.Errorf("Expected generic message, got %q", got)
	}
	if got := GetErrorMessage(errors.New("raw driver error")); got != "Something went wrong" {
		t.Errorf("Expected generic message for unknown error, got %q", got)
	}
	if got := GetErrorMessage(ErrInvalidResetToken); got != "Invalid reset token" {
		t.Errorf("Expected reset message, got %q", got)
	}
}

func TestDomainError_IsMatchesByCode(t *testing.T) {
	wrapped := WrapError(ErrEmailExists, errors.New("duplicate key"))

	if !errors.Is(wrapped, ErrEmailExists) {
		t.Error("Expected wrapped error to match ErrEmailExists")
	}
	if errors.Is(wrapped, ErrInvalidCredentials) {
		t.Error("Expected wrapped error not to match ErrInvalidCredentials")
	}
}
