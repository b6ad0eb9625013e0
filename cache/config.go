package cache

import (
	"time"

	"github.com/kbukum/warden/validation"
)

// Config holds cache sizing. Both values are fixed once the cache is built.
type Config struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	MaxCapacity int           `yaml:"max_capacity" mapstructure:"max_capacity" validate:"gt=0"`
	TTL         time.Duration `yaml:"ttl" mapstructure:"ttl" validate:"gt=0"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.MaxCapacity <= 0 {
		c.MaxCapacity = 1000
	}
	if c.TTL <= 0 {
		c.TTL = 10 * time.Minute
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
