package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the error type shared by every package. It carries a code,
// a message safe to show, and the underlying cause.
type AppError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches any *AppError with the same code, so
// errors.Is(err, errors.New(ErrCodeServiceFatal, "")) works.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithCause sets the cause and returns e.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail adds one detail and returns e.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithStatus overrides the HTTP status and returns e.
func (e *AppError) WithStatus(status int) *AppError {
	e.HTTPStatus = status
	return e
}

// New creates an error whose status and retryability follow code.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: code.HTTPStatus(),
		Retryable:  IsRetryableCode(code),
	}
}

// ServiceFatal is the error Supervisor.Wait returns for a terminated slot.
func ServiceFatal(service string, cause error) *AppError {
	return New(ErrCodeServiceFatal, "internal service error").
		WithCause(cause).
		WithDetail("service", service)
}

// RateLimited is a call rejected by the named local limiter.
func RateLimited(limiter string) *AppError {
	return New(ErrCodeRateLimited, fmt.Sprintf("rate limit exceeded for %s", limiter)).
		WithDetail("limiter", limiter)
}

// Validation is input that failed its constraints.
func Validation(message string) *AppError {
	return New(ErrCodeInvalidInput, message)
}

// AsAppError finds the first *AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err's chain holds an *AppError with code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// IsRetryable reports whether err's chain holds a retryable *AppError.
func IsRetryable(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Retryable
}
