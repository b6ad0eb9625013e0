package bootstrap

import (
	"io"
	"os"
	"syscall"
	"time"

	"github.com/kbukum/warden/logger"
	"github.com/kbukum/warden/observability"
)

// Option configures the App. Options are non-generic so they work with
// any config and deps type.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	metrics         *observability.Metrics
	gracefulTimeout time.Duration
	signals         []os.Signal
	summaryOut      io.Writer
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{
		gracefulTimeout: 15 * time.Second,
		signals:         []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		summaryOut:      os.Stdout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger replaces the logger built from the service's logging config.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) { o.logger = l }
}

// WithMetrics replaces the instruments built on the global meter.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *appOptions) { o.metrics = m }
}

// WithGracefulTimeout bounds shutdown. Defaults to 15s.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) { o.gracefulTimeout = d }
}

// WithSignals sets the signals that stop Run. Defaults to SIGINT and SIGTERM.
func WithSignals(sigs ...os.Signal) Option {
	return func(o *appOptions) { o.signals = sigs }
}

// WithSummaryOutput redirects the startup summary; nil disables it.
func WithSummaryOutput(w io.Writer) Option {
	return func(o *appOptions) { o.summaryOut = w }
}
