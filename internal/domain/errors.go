package domain

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError reports malformed or policy-violating input. Field detail
// is only populated for non-sensitive fields.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// NewValidationError creates a validation error without field detail
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// NewFieldValidationError creates a validation error attached to a field
func NewFieldValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ApplicationError reports a business-rule violation. Messages are safe to
// return to callers but stay deliberately vague for credential failures.
type ApplicationError struct {
	Message string
}

func (e *ApplicationError) Error() string {
	return e.Message
}

// NewApplicationError creates an application error
func NewApplicationError(message string) *ApplicationError {
	return &ApplicationError{Message: message}
}

// RateLimitError reports that a caller exceeded the allowed request rate.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("too many requests, try again in %v", e.RetryAfter.Round(time.Second))
	}
	return "too many requests"
}

// Credential and OTP failures collapse to these generic errors so the
// response never reveals which sub-check failed.
var (
	ErrInvalidCredentials = NewApplicationError("invalid credentials")
	ErrInvalidOTP         = NewValidationError("invalid or expired code")
	ErrInvalidToken       = NewValidationError("invalid token")
	ErrOTPExpired         = NewApplicationError("code expired, please log in again")
	ErrPasswordReused     = NewApplicationError("password cannot match any of the last 12 passwords")
	ErrPasswordTooSoon    = NewApplicationError("password was changed less than 24 hours ago")
	ErrLastSuperAdmin     = NewApplicationError("you must have at least one user with super admin role")
)

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsApplicationError reports whether err is (or wraps) an ApplicationError.
func IsApplicationError(err error) bool {
	var ae *ApplicationError
	return errors.As(err, &ae)
}

// IsRateLimitError reports whether err is (or wraps) a RateLimitError.
func IsRateLimitError(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}
