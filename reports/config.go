package reports

import "github.com/kbukum/warden/validation"

// Config sizes the report channel.
type Config struct {
	Capacity int `yaml:"capacity" mapstructure:"capacity" validate:"gt=0"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
