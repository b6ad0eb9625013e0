package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/kbukum/warden/errors"
)

// Kind classifies a failed ExecuteWithRetry call.
type Kind int

const (
	// KindTerminal means the call was not retried: a non-retryable status,
	// a non-retryable transport fault, or a request that cannot be replayed.
	KindTerminal Kind = iota
	// KindAllRetriesExhausted means every attempt failed with a retryable fault.
	KindAllRetriesExhausted
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTerminal:
		return "terminal"
	case KindAllRetriesExhausted:
		return "all_retries_exhausted"
	default:
		return "unknown"
	}
}

// RetryError is the only error type returned by ExecuteWithRetry.
type RetryError struct {
	// Kind classifies the failure.
	Kind Kind
	// Message describes the failure. For exhaustion it is the last
	// attempt's description, e.g. "HTTP 503 Service Unavailable".
	Message string
	// StatusCode is the status of a terminal response (0 otherwise).
	StatusCode int
	// Body is the body of a terminal response (may be nil).
	Body []byte
	// Attempts is the number of transport calls made.
	Attempts int
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *RetryError) Error() string {
	if e.Kind == KindAllRetriesExhausted {
		return fmt.Sprintf("httpclient: request failed after all retries: %s", e.Message)
	}
	return fmt.Sprintf("httpclient: non-retryable error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *RetryError) Unwrap() error {
	return e.Err
}

// Code maps the failure onto the toolkit error codes.
func (e *RetryError) Code() errors.ErrorCode {
	if e.Kind == KindAllRetriesExhausted {
		return errors.ErrCodeRetriesExhausted
	}
	return errors.ErrCodeTerminal
}

// AppError converts the failure into the unified error type, tagged with
// the name of the remote service.
func (e *RetryError) AppError(service string) *errors.AppError {
	appErr := errors.New(e.Code(), e.Message).
		WithCause(e).
		WithDetail("service", service).
		WithDetail("attempts", e.Attempts)
	if e.StatusCode > 0 {
		appErr = appErr.WithDetail("status_code", e.StatusCode)
	}
	return appErr
}

// IsTerminal checks if err is a terminal retry failure.
func IsTerminal(err error) bool {
	var e *RetryError
	return stderrors.As(err, &e) && e.Kind == KindTerminal
}

// IsExhausted checks if err is an exhausted retry failure.
func IsExhausted(err error) bool {
	var e *RetryError
	return stderrors.As(err, &e) && e.Kind == KindAllRetriesExhausted
}

// attemptError carries one attempt's classification through the retry loop.
type attemptError struct {
	retryable  bool
	desc       string
	statusCode int
	body       []byte
	err        error
}

func (e *attemptError) Error() string { return e.desc }

func (e *attemptError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var e *attemptError
	return stderrors.As(err, &e) && e.retryable
}

// RetryableStatus reports whether a response status is worth another
// attempt: any 5xx, or 429.
func RetryableStatus(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}

// statusError classifies a non-2xx response.
func statusError(statusCode int, body []byte) *attemptError {
	return &attemptError{
		retryable:  RetryableStatus(statusCode),
		desc:       fmt.Sprintf("HTTP %d %s", statusCode, http.StatusText(statusCode)),
		statusCode: statusCode,
		body:       body,
	}
}

// transportError classifies a fault returned by the Doer.
func transportError(ctx context.Context, err error) *attemptError {
	return &attemptError{
		retryable: RetryableTransport(ctx, err),
		desc:      err.Error(),
		err:       err,
	}
}

// RetryableTransport reports whether a transport fault is worth another
// attempt. Timeouts, connection failures and I/O faults while exchanging
// the request are; caller cancellation, certificate verification failures,
// unsupported schemes and redirect-policy refusals are not.
func RetryableTransport(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() != nil || stderrors.Is(err, context.Canceled) {
		return false
	}

	var certErr *tls.CertificateVerificationError
	var authorityErr x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	if stderrors.As(err, &certErr) || stderrors.As(err, &authorityErr) ||
		stderrors.As(err, &hostnameErr) || stderrors.As(err, &invalidErr) {
		return false
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if stderrors.As(err, &opErr) || stderrors.As(err, &dnsErr) {
		return true
	}

	if stderrors.Is(err, syscall.ECONNREFUSED) ||
		stderrors.Is(err, syscall.ECONNRESET) ||
		stderrors.Is(err, syscall.ECONNABORTED) ||
		stderrors.Is(err, syscall.EPIPE) ||
		stderrors.Is(err, syscall.ENETUNREACH) ||
		stderrors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}

	return stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF)
}
