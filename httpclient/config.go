package httpclient

import (
	"time"

	"github.com/kbukum/warden/resilience"
	"github.com/kbukum/warden/validation"
)

const (
	defaultMaxRetries = 3
	defaultTimeout    = 45 * time.Second
	defaultBaseDelay  = time.Second
)

// Config configures the retry client.
type Config struct {
	// MaxRetries is the total number of attempts per call. Defaults to 3.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries" validate:"gt=0"`

	// Timeout bounds each attempt. It is applied by the transport, not the
	// retry loop. Defaults to 45s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`

	// BaseDelay is the backoff base; the delay after attempt i (0-based)
	// is BaseDelay * 2^(i+1). Defaults to 1s.
	BaseDelay time.Duration `yaml:"base_delay" mapstructure:"base_delay" validate:"gte=0"`

	// Headers are default headers applied to every attempt unless the
	// request already sets them.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// CircuitBreaker wraps each attempt. Nil disables it.
	CircuitBreaker *resilience.CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`

	// RateLimiter gates each attempt. Nil disables it.
	RateLimiter *resilience.RateLimiterConfig `yaml:"rate_limiter" mapstructure:"rate_limiter"`
}

// DefaultConfig returns the stock retry settings.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	return validation.Validate(c)
}

// retryConfig maps the client settings onto the generic retry loop.
// Doubling from 2*BaseDelay yields BaseDelay * 2^(attempt+1) per
// 0-based attempt, uncapped and without jitter.
func (c *Config) retryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    c.MaxRetries,
		InitialBackoff: 2 * c.BaseDelay,
		BackoffFactor:  2,
		RetryIf:        isRetryable,
	}
}
