package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Err     error // underlying error for wrapping
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is and errors.As
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches domain errors by code so wrapped copies compare equal.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with domain error context
func WrapError(domainErr *DomainError, err error) *DomainError {
	return &DomainError{
		Code:    domainErr.Code,
		Message: domainErr.Message,
		Err:     err,
	}
}

// ValidationError carries a field-keyed map of human-readable messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Error codes
const (
	CodeUnauthorized                = "UNAUTHORIZED"
	CodeInvalidCredentials          = "INVALID_CREDENTIALS"
	CodeInvalidToken                = "INVALID_TOKEN"
	CodeEmailExists                 = "EMAIL_EXISTS"
	CodeInvalidEmailValidationToken = "INVALID_EMAIL_VALIDATION_TOKEN"
	CodeInvalidResetToken           = "INVALID_RESET_TOKEN"
	CodeIncorrectPassword           = "INCORRECT_PASSWORD"
	CodeInvalidInput                = "INVALID_INPUT"
	CodeValidationFailed            = "VALIDATION_FAILED"
	CodeRateLimited                 = "RATE_LIMITED"
	CodeInternal                    = "INTERNAL_ERROR"
)

// Predefined domain errors
var (
	// Authentication errors
	ErrInvalidCredentials = NewDomainError(CodeInvalidCredentials, "invalid credentials")
	ErrUnauthorized       = NewDomainError(CodeUnauthorized, "Unauthorized")
	ErrInvalidToken       = NewDomainError(CodeInvalidToken, "invalid or expired token")

	// Account errors
	ErrEmailExists                 = NewDomainError(CodeEmailExists, "email already exists")
	ErrInvalidEmailValidationToken = NewDomainError(CodeInvalidEmailValidationToken, "invalid email validation token")
	ErrInvalidResetToken           = NewDomainError(CodeInvalidResetToken, "Invalid reset token")
	ErrIncorrectPassword           = NewDomainError(CodeIncorrectPassword, "old password is incorrect")
	ErrInvalidInput                = NewDomainError(CodeInvalidInput, "invalid input")
	ErrRateLimited                 = NewDomainError(CodeRateLimited, "too many requests")

	// System errors
	ErrInternal = NewDomainError(CodeInternal, "Something went wrong")
)

// IsDomainError checks if an error is a domain error
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// GetDomainError extracts the domain error from an error
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// GetValidationError extracts the validation error from an error
func GetValidationError(err error) *ValidationError {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr
	}
	return nil
}

// ToHTTPStatus maps domain errors to HTTP status codes
// This should only be used in the handler/presentation layer
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if GetValidationError(err) != nil {
		return http.StatusUnprocessableEntity
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErrorToHTTPStatus(domainErr)
	}

	return http.StatusInternalServerError
}

func domainErrorToHTTPStatus(err *DomainError) int {
	switch err.Code {
	case CodeInvalidInput, CodeInvalidEmailValidationToken, CodeInvalidResetToken, CodeIncorrectPassword:
		return http.StatusBadRequest

	case CodeUnauthorized, CodeInvalidCredentials, CodeInvalidToken:
		return http.StatusUnauthorized

	case CodeEmailExists:
		return http.StatusConflict

	case CodeValidationFailed:
		return http.StatusUnprocessableEntity

	case CodeRateLimited:
		return http.StatusTooManyRequests

	default:
		return http.StatusInternalServerError
	}
}

// GetErrorMessage returns the caller-safe message for err. Anything that
// is not a domain error, or maps to a 5xx, collapses to the generic message.
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) && domainErrorToHTTPStatus(domainErr) < http.StatusInternalServerError {
		return domainErr.Message
	}

	return ErrInternal.Message
}
