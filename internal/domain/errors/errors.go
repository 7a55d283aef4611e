package errors

import (
	"errors"
	"fmt"
	"maps"
)

// ErrorCode represents different types of domain errors
type ErrorCode string

const (
	// User related errors
	ErrCodeUserNotFound      ErrorCode = "USER_NOT_FOUND"
	ErrCodeUserAlreadyExists ErrorCode = "USER_ALREADY_EXISTS"
	ErrCodeUpdateFailed      ErrorCode = "UPDATE_FAILED"

	// Validation errors
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidEmail     ErrorCode = "INVALID_EMAIL"
	ErrCodeInvalidName      ErrorCode = "INVALID_NAME"
	ErrCodeInvalidID        ErrorCode = "INVALID_ID"

	// Repository errors
	ErrCodeRepositoryError ErrorCode = "REPOSITORY_ERROR"

	// Application errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error wrapping
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison for errors.Is
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithContext returns a copy of the error carrying an extra context entry.
// The receiver is left untouched so package-level sentinels stay immutable.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	clone := *e
	clone.Context = make(map[string]interface{}, len(e.Context)+1)
	maps.Copy(clone.Context, e.Context)
	clone.Context[key] = value
	return &clone
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewDomainErrorWithCause creates a new domain error with an underlying cause
func NewDomainErrorWithCause(code ErrorCode, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Predefined domain errors. The user-facing messages are part of the HTTP
// contract and must not change.
var (
	ErrUserNotFound      = NewDomainError(ErrCodeUserNotFound, "User not found")
	ErrUserAlreadyExists = NewDomainError(ErrCodeUserAlreadyExists, "User already exists")
	ErrUpdateFailed      = NewDomainError(ErrCodeUpdateFailed, "Update failed")
	ErrInvalidEmail      = NewDomainError(ErrCodeInvalidEmail, "email must be an email")
	ErrInvalidName       = NewDomainError(ErrCodeInvalidName, "name must be a string")
	ErrInvalidID         = NewDomainError(ErrCodeInvalidID, "Validation failed (numeric string is expected)")
	ErrInternalError     = NewDomainError(ErrCodeInternalError, "Internal server error")
)

// IsUserNotFound checks if the error is a user not found error
func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// IsUserAlreadyExists checks if the error is a user already exists error
func IsUserAlreadyExists(err error) bool {
	return errors.Is(err, ErrUserAlreadyExists)
}

// IsConflict reports whether err is an email uniqueness violation raised by
// either create or update.
func IsConflict(err error) bool {
	return errors.Is(err, ErrUserAlreadyExists) || errors.Is(err, ErrUpdateFailed)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == ErrCodeValidationFailed ||
			domainErr.Code == ErrCodeInvalidEmail ||
			domainErr.Code == ErrCodeInvalidName ||
			domainErr.Code == ErrCodeInvalidID
	}
	return false
}

// IsRepositoryError checks if the error is a repository error
func IsRepositoryError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == ErrCodeRepositoryError
	}
	return false
}
