package supervisor

import (
	"time"

	"github.com/kbukum/warden/validation"
)

// Config holds supervisor tuning. The zero value keeps the classic
// behavior: immediate restarts and no crash ceiling.
type Config struct {
	RestartDelay time.Duration `yaml:"restart_delay" mapstructure:"restart_delay" validate:"gte=0"`
	MaxCrashes   int           `yaml:"max_crashes" mapstructure:"max_crashes" validate:"gte=0"`
}

// ApplyDefaults is a no-op; every zero value is meaningful.
func (c *Config) ApplyDefaults() {}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
