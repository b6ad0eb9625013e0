package config

import (
	"fmt"

	"github.com/kbukum/warden/logger"
	"github.com/kbukum/warden/version"
)

var environments = []string{"development", "staging", "production"}

// ServiceConfig identifies the host process. Embed it to extend Config
// with application settings:
//
//	type MyConfig struct {
//	    config.Config `yaml:",inline" mapstructure:",squash"`
//	    Upstream string `yaml:"upstream" mapstructure:"upstream"`
//	}
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
}

// ApplyDefaults fills unset fields. Development implies debug, and the
// version falls back to the one stamped at build time.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.Version == "" {
		c.Version = version.Version
	}
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()
}

// Validate checks the service identity and logging settings.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("service.name is required")
	}
	if !contains(environments, c.Environment) {
		return fmt.Errorf("service.environment must be one of %v (got: %s)", environments, c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("service.logging: %w", err)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
