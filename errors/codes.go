package errors

import "net/http"

// ErrorCode is a machine-readable failure class.
type ErrorCode string

// Transient failures. Retrying may succeed.
const (
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeConnectionFailed   ErrorCode = "CONNECTION_FAILED"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
	ErrCodeExternalService    ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// Final failures.
const (
	// ErrCodeTerminal is a call that failed in a way retrying cannot fix.
	ErrCodeTerminal ErrorCode = "TERMINAL"
	// ErrCodeRetriesExhausted is a call whose every attempt failed transiently.
	ErrCodeRetriesExhausted ErrorCode = "RETRIES_EXHAUSTED"
	// ErrCodeServiceFatal is a supervised service that terminated; the
	// process should end.
	ErrCodeServiceFatal ErrorCode = "SERVICE_FATAL"
)

// Input and internal failures.
const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

type codeInfo struct {
	status    int
	retryable bool
}

var codes = map[ErrorCode]codeInfo{
	ErrCodeServiceUnavailable: {http.StatusServiceUnavailable, true},
	ErrCodeConnectionFailed:   {http.StatusServiceUnavailable, true},
	ErrCodeTimeout:            {http.StatusGatewayTimeout, true},
	ErrCodeRateLimited:        {http.StatusTooManyRequests, true},
	ErrCodeExternalService:    {http.StatusBadGateway, true},
	ErrCodeTerminal:           {http.StatusBadGateway, false},
	ErrCodeRetriesExhausted:   {http.StatusServiceUnavailable, false},
	ErrCodeServiceFatal:       {http.StatusServiceUnavailable, false},
	ErrCodeInvalidInput:       {http.StatusBadRequest, false},
	ErrCodeMissingField:       {http.StatusBadRequest, false},
	ErrCodeInternal:           {http.StatusInternalServerError, false},
}

// IsRetryableCode reports whether code is a transient failure class.
func IsRetryableCode(code ErrorCode) bool {
	return codes[code].retryable
}

// HTTPStatus returns the status code's failures map to, or 500 for an
// unknown code.
func (c ErrorCode) HTTPStatus() int {
	if info, ok := codes[c]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}
