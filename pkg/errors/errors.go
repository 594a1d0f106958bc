package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per failure class. AppError values wrap exactly one of these
// so callers can branch with errors.Is.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrProfile         = errors.New("profile unresolved")
	ErrStoreResolution = errors.New("store resolution failed")
	ErrTransport       = errors.New("transport error")
	ErrServiceUnavail  = errors.New("service unavailable")
	ErrInternal        = errors.New("internal error")

	// ErrOTPRejected is an ErrUnauthorized the user can fix by entering the code again.
	ErrOTPRejected = fmt.Errorf("otp rejected: %w", ErrUnauthorized)
)

// AppError represents a structured application error.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Step    string `json:"step,omitempty"`
	Err     error  `json:"-"`

	cause error
}

func (e *AppError) Error() string {
	msg := e.Code + ": " + e.Message
	if e.Step != "" {
		msg = fmt.Sprintf("%s (step %s)", msg, e.Step)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *AppError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// AtStep returns a copy of the error tagged with the step that produced it.
func (e *AppError) AtStep(step string) *AppError {
	cpy := *e
	cpy.Step = step
	return &cpy
}

// WithCause returns a copy of the error that also wraps cause.
func (e *AppError) WithCause(cause error) *AppError {
	cpy := *e
	cpy.cause = cause
	return &cpy
}

// Cause returns the underlying error, if any.
func (e *AppError) Cause() error {
	return e.cause
}

// NotFound creates a precondition failure for a missing resource.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Err:     ErrNotFound,
	}
}

// NotFoundf creates a not-found error with a free-form message.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf(format, args...),
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a local input validation error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a handshake failure.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "AUTH_FAILED",
		Message: message,
		Err:     ErrUnauthorized,
	}
}

// OTPRejected creates the user-actionable error for a wrong or expired code.
func OTPRejected(message string) *AppError {
	return &AppError{
		Code:    "OTP_REJECTED",
		Message: message,
		Err:     ErrOTPRejected,
	}
}

// ProfileUnresolved creates a post-auth profile enrichment failure.
func ProfileUnresolved(message string) *AppError {
	return &AppError{
		Code:    "PROFILE_UNRESOLVED",
		Message: message,
		Err:     ErrProfile,
	}
}

// StoreResolution creates a store assignment failure.
func StoreResolution(message string) *AppError {
	return &AppError{
		Code:    "STORE_RESOLUTION_FAILED",
		Message: message,
		Err:     ErrStoreResolution,
	}
}

// ServiceUnavailable creates an error for a platform that is refusing calls.
func ServiceUnavailable(message string) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Err:     ErrServiceUnavail,
	}
}

// Internal wraps an unexpected error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Err:     ErrInternal,
		cause:   err,
	}
}

// Code returns the AppError code carried by err, or "" when err is not an AppError.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// AtStep tags err with the step that produced it. An AppError that already
// names a step is returned unchanged; other errors get the step as a prefix.
func AtStep(err error, step string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Step != "" {
			return err
		}
		return appErr.AtStep(step)
	}
	return fmt.Errorf("%s: %w", step, err)
}
