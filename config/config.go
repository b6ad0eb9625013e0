package config

import (
	"fmt"

	"github.com/kbukum/warden/cache"
	"github.com/kbukum/warden/health"
	"github.com/kbukum/warden/httpclient"
	"github.com/kbukum/warden/observability"
	"github.com/kbukum/warden/reports"
	"github.com/kbukum/warden/supervisor"
)

// Config is the full process configuration.
//
//	service:
//	  name: ingest
//	  logging: {level: info, format: json}
//	http:
//	  max_retries: 3
//	  timeout: 45s
//	  base_delay: 1s
//	reports:
//	  capacity: 100
//	supervisor:
//	  restart_delay: 0s
//	health:
//	  enabled: true
//	  port: 8081
type Config struct {
	Service       ServiceConfig        `yaml:"service" mapstructure:"service"`
	HTTP          httpclient.Config    `yaml:"http" mapstructure:"http"`
	Cache         cache.Config         `yaml:"cache" mapstructure:"cache"`
	Reports       reports.Config       `yaml:"reports" mapstructure:"reports"`
	Supervisor    supervisor.Config    `yaml:"supervisor" mapstructure:"supervisor"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
	Health        health.Config        `yaml:"health" mapstructure:"health"`
}

// GetConfig returns c. Embedding structs inherit it, which lets bootstrap
// accept any type that embeds Config.
func (c *Config) GetConfig() *Config {
	return c
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	c.Service.ApplyDefaults()
	c.HTTP.ApplyDefaults()
	c.Cache.ApplyDefaults()
	c.Reports.ApplyDefaults()
	c.Supervisor.ApplyDefaults()

	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Service.Name
	}
	if c.Observability.ServiceVersion == "" {
		c.Observability.ServiceVersion = c.Service.Version
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = c.Service.Environment
	}
	c.Observability.ApplyDefaults()
	c.Health.ApplyDefaults()
}

// Validate checks every section, naming the first that fails.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		fn   func() error
	}{
		{"service", c.Service.Validate},
		{"http", c.HTTP.Validate},
		{"cache", c.Cache.Validate},
		{"reports", c.Reports.Validate},
		{"supervisor", c.Supervisor.Validate},
		{"observability", c.Observability.Validate},
		{"health", c.Health.Validate},
	}
	for _, s := range sections {
		if err := s.fn(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// Load reads configuration for serviceName, then applies defaults and
// validates. The name from the file wins over serviceName.
func Load(serviceName string, opts ...LoaderOption) (*Config, error) {
	var cfg Config
	if err := LoadConfig(serviceName, &cfg, opts...); err != nil {
		return nil, err
	}
	if cfg.Service.Name == "" {
		cfg.Service.Name = serviceName
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}
