package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeInvalid       ErrorCode = "INVALID"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeRateLimited   ErrorCode = "RATE_LIMITED"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal      ErrorCode = "INTERNAL"
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error represents a domain-level error.
type Error struct {
	Code       ErrorCode
	Message    string
	Err        error
	Fields     []FieldError
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewValidationError builds an INVALID error carrying per-field details.
func NewValidationError(message string, fields ...FieldError) *Error {
	return &Error{Code: ErrCodeInvalid, Message: message, Fields: fields}
}

// NewRateLimitError builds a RATE_LIMITED error that tells the caller when the quota window resets.
func NewRateLimitError(message string, retryAfter time.Duration) *Error {
	return &Error{Code: ErrCodeRateLimited, Message: message, RetryAfter: retryAfter}
}

// Common domain errors.
var (
	ErrSettingsNotFound      = NewError(ErrCodeNotFound, "settings not found")
	ErrSettingsAlreadyExists = NewError(ErrCodeAlreadyExists, "settings already exist for this tenant")
	ErrEntryNotFound         = NewError(ErrCodeNotFound, "entry not found")
	ErrEntryAlreadyExists    = NewError(ErrCodeAlreadyExists, "entry already exists")
	ErrHistoryNotFound       = NewError(ErrCodeNotFound, "history entry not found")
	ErrAuditLogsNotFound     = NewError(ErrCodeNotFound, "no audit logs matched the filter")
	ErrOTPNotFound           = NewError(ErrCodeNotFound, "no pending otp challenge")
	ErrVersionConflict       = NewError(ErrCodeConflict, "settings were modified concurrently, reload and retry")
	ErrInvalidModule         = NewError(ErrCodeInvalid, "unknown settings module")
	ErrInvalidRollbackModule = NewError(ErrCodeInvalid, "Invalid module for rollback")
	ErrNotCollection         = NewError(ErrCodeInvalid, "module does not hold named entries")
	ErrTenantRequired        = NewError(ErrCodeInvalid, "tenantId is required")
	ErrAllEntriesExist       = NewError(ErrCodeInvalid, "every entry in the batch already exists")
	ErrNothingToRollback     = NewError(ErrCodeInvalid, "history entry has no previous state to restore")
	ErrMFADisabled           = NewError(ErrCodeInvalid, "multi-factor authentication is disabled")
	ErrOTPExpired            = NewError(ErrCodeInvalid, "otp has expired")
	ErrOTPMismatch           = NewError(ErrCodeInvalid, "otp code is invalid")
	ErrOTPAttemptsExceeded   = NewError(ErrCodeInvalid, "too many otp attempts, request a new code")
	ErrUnsupportedCipher     = NewError(ErrCodeInvalid, "configured encryption standard does not support symmetric encryption")
	ErrCiphertextInvalid     = NewError(ErrCodeInvalid, "ciphertext cannot be decrypted")
	ErrUnauthorized          = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrForbidden             = NewError(ErrCodeForbidden, "missing permission")
	ErrInvalidPayload        = NewError(ErrCodeInvalid, "invalid payload")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// AsInternal keeps domain errors as they are and classifies everything else as INTERNAL.
func AsInternal(message string, err error) error {
	if err == nil {
		return nil
	}
	var dErr *Error
	if errors.As(err, &dErr) {
		return err
	}
	return WrapError(ErrCodeInternal, message, err)
}
