package supervisor

import (
	"time"

	"github.com/kbukum/warden/logger"
	"github.com/kbukum/warden/observability"
)

type options struct {
	logger       *logger.Logger
	metrics      *observability.Metrics
	restartDelay time.Duration
	maxCrashes   int
}

func defaultOptions() options {
	return options{logger: logger.Get("supervisor")}
}

// Option customizes a Supervisor.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records restart and failure counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRestartDelay pauses between iterations of a slot. Zero, the
// default, restarts immediately.
func WithRestartDelay(d time.Duration) Option {
	return func(o *options) { o.restartDelay = d }
}

// WithMaxCrashes escalates a restart-forever slot after n consecutive
// crashes. Zero, the default, never escalates.
func WithMaxCrashes(n int) Option {
	return func(o *options) { o.maxCrashes = n }
}

// WithConfig applies the settings from cfg.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.restartDelay = cfg.RestartDelay
		o.maxCrashes = cfg.MaxCrashes
	}
}
