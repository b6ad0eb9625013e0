package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/warden/logger"
	"github.com/kbukum/warden/observability"
	"github.com/kbukum/warden/resilience"
)

// maxErrorBody bounds how much of a terminal response body is kept.
const maxErrorBody = 1 << 20

// Doer issues a single HTTP exchange. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customizes a Client.
type Option func(*Client)

// WithDoer replaces the transport. The per-attempt timeout then becomes
// the Doer's responsibility.
func WithDoer(d Doer) Option {
	return func(c *Client) { c.doer = d }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics records attempt and exhaustion counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRetryHook is called before every backoff sleep with the 1-based
// attempt that failed and the delay about to be taken.
func WithRetryHook(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(c *Client) { c.onRetry = fn }
}

// Client executes HTTP requests with bounded exponential-backoff retry.
// It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	doer       Doer
	config     Config
	cb         *resilience.CircuitBreaker
	rl         *resilience.RateLimiter
	log        *logger.Logger
	metrics    *observability.Metrics
	onRetry    func(attempt int, delay time.Duration, err error)
}

// New creates a retry client. The per-attempt timeout is set on the
// underlying *http.Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hc := &http.Client{
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
		Timeout:   cfg.Timeout,
	}
	c := &Client{
		httpClient: hc,
		doer:       hc,
		config:     cfg,
		log:        logger.Get("httpclient"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.CircuitBreaker != nil {
		cbCfg := *cfg.CircuitBreaker
		if cbCfg.IsFailure == nil {
			cbCfg.IsFailure = isRetryable
		}
		if cbCfg.OnStateChange == nil {
			log := c.log
			cbCfg.OnStateChange = func(name string, from, to resilience.State) {
				log.Warn("Circuit breaker state changed", logger.Fields(
					"circuit", name, "from", from.String(), "to", to.String()))
			}
		}
		c.cb = resilience.NewCircuitBreaker(cbCfg)
	}
	if cfg.RateLimiter != nil {
		c.rl = resilience.NewRateLimiter(*cfg.RateLimiter)
	}

	return c, nil
}

// NewDefault creates a client with the stock settings.
func NewDefault(opts ...Option) *Client {
	c, err := New(DefaultConfig(), opts...)
	if err != nil {
		// DefaultConfig always validates.
		panic(err)
	}
	return c
}

// HTTP returns the underlying *http.Client for calls that should not be retried.
func (c *Client) HTTP() *http.Client {
	return c.httpClient
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}

// ExecuteWithRetry sends req up to MaxRetries times. A 2xx response is
// returned as-is and the caller owns its body. Any failure is a
// *RetryError: KindTerminal for non-retryable statuses or faults (returned
// after the attempt that saw them), KindAllRetriesExhausted once every
// attempt failed retryably. A request whose body cannot be replayed fails
// as KindTerminal without reaching the transport.
//
// Attempts run under ctx and req's own context together: whichever is
// cancelled or hits its deadline first ends the call.
func (c *Client) ExecuteWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	if !replayable(req) {
		return nil, &RetryError{Kind: KindTerminal, Message: "request body not replayable"}
	}

	ctx, release := joinContext(ctx, req.Context())

	host := req.URL.Host
	ctx, span := observability.StartSpan(ctx, observability.SpanRetryCall,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(observability.AttrHTTPHost, host),
			attribute.String("http.method", req.Method),
		))

	retryCfg := c.config.retryConfig()
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.log.Warn(fmt.Sprintf("Request attempt %d failed, retrying in %s", attempt, delay), logger.Fields(
			logger.FieldAttempt, attempt,
			logger.FieldDelay, delay.Milliseconds(),
			logger.FieldURL, redactURL(req),
		))
		if c.onRetry != nil {
			c.onRetry(attempt, delay, err)
		}
	}

	attempts := 0
	resp, err := resilience.Retry(ctx, retryCfg, func() (*http.Response, error) {
		attempts++
		resp, err := c.attempt(ctx, req)
		outcome := attemptOutcome(err)
		span.AddEvent("attempt", trace.WithAttributes(
			attribute.Int(observability.AttrAttempt, attempts),
			attribute.String(observability.AttrOutcome, outcome),
		))
		c.metrics.RecordRetryAttempt(ctx, host, outcome)
		if err != nil {
			c.log.Warn(fmt.Sprintf("Error response received on attempt %d", attempts), logger.Fields(
				logger.FieldAttempt, attempts,
				logger.FieldMethod, req.Method,
				logger.FieldURL, redactURL(req),
				logger.FieldError, err.Error(),
			))
		}
		return resp, err
	})
	if err == nil {
		span.SetAttributes(attribute.Int(observability.AttrAttempt, attempts))
		observability.EndSpan(span, nil)
		resp.Body = &releaseOnClose{ReadCloser: resp.Body, release: release}
		return resp, nil
	}
	release()

	retryErr := toRetryError(err, attempts)
	if retryErr.Kind == KindAllRetriesExhausted {
		c.log.Error("All retries failed - check server", logger.Fields(
			logger.FieldAttempt, attempts,
			logger.FieldURL, redactURL(req),
			logger.FieldError, retryErr.Message,
		))
		c.metrics.RecordRetryExhausted(ctx, host)
	}
	observability.EndSpan(span, retryErr)
	return nil, retryErr
}

// PostJSON marshals v and sends it as a retried POST.
func (c *Client) PostJSON(ctx context.Context, url string, v any) (*http.Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &RetryError{Kind: KindTerminal, Message: fmt.Sprintf("encode body: %v", err), Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, &RetryError{Kind: KindTerminal, Message: fmt.Sprintf("create request: %v", err), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.ExecuteWithRetry(ctx, req)
}

// attempt runs one exchange through the optional rate limiter and
// circuit breaker.
func (c *Client) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.rl != nil {
		if err := c.rl.Wait(ctx); err != nil {
			return nil, &attemptError{desc: err.Error(), err: err}
		}
	}

	if c.cb == nil {
		return c.send(ctx, req)
	}

	var resp *http.Response
	err := c.cb.Execute(func() error {
		var sendErr error
		resp, sendErr = c.send(ctx, req)
		return sendErr
	})
	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		return nil, &attemptError{desc: err.Error(), err: err}
	}
	return resp, err
}

// send issues one independent copy of req and classifies the result.
func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	r := req.Clone(ctx)
	if hasBody(req) {
		body, err := req.GetBody()
		if err != nil {
			return nil, &attemptError{desc: "replay request body: " + err.Error(), err: err}
		}
		r.Body = body
	}
	for k, v := range c.config.Headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}

	resp, err := c.doer.Do(r)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	if RetryableStatus(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil, statusError(resp.StatusCode, nil)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, statusError(resp.StatusCode, body)
}

func toRetryError(err error, attempts int) *RetryError {
	re := &RetryError{Kind: KindTerminal, Message: err.Error(), Attempts: attempts, Err: err}
	if stderrors.Is(err, resilience.ErrMaxRetriesExceeded) {
		re.Kind = KindAllRetriesExhausted
	}
	var ae *attemptError
	if stderrors.As(err, &ae) {
		re.Message = ae.desc
		re.Err = ae.err
		if re.Kind == KindTerminal {
			re.StatusCode = ae.statusCode
			re.Body = ae.body
		}
	}
	return re
}

func attemptOutcome(err error) string {
	var ae *attemptError
	switch {
	case err == nil:
		return "success"
	case stderrors.As(err, &ae) && ae.statusCode > 0:
		return strconv.Itoa(ae.statusCode)
	case isRetryable(err):
		return "retryable"
	default:
		return "terminal"
	}
}

// joinContext returns a context that ends when either parent does. The
// release func must be called once the result is no longer in use.
func joinContext(ctx, reqCtx context.Context) (context.Context, func()) {
	if reqCtx == nil || reqCtx == ctx || reqCtx.Done() == nil {
		return ctx, func() {}
	}
	var cancelDeadline context.CancelFunc = func() {}
	if dl, ok := reqCtx.Deadline(); ok {
		ctx, cancelDeadline = context.WithDeadline(ctx, dl)
	}
	ctx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(reqCtx, func() { cancel(context.Cause(reqCtx)) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
		cancelDeadline()
	}
}

// releaseOnClose frees the joined attempt context when the caller closes
// the response body.
type releaseOnClose struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *releaseOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}

func hasBody(req *http.Request) bool {
	return req.Body != nil && req.Body != http.NoBody
}

func replayable(req *http.Request) bool {
	return !hasBody(req) || req.GetBody != nil
}

// redactURL drops credentials and query strings from logged URLs.
func redactURL(req *http.Request) string {
	u := *req.URL
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
