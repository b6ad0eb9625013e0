package bootstrap

import (
	"github.com/kbukum/warden/config"
)

// Config is satisfied by *config.Config and by any struct that embeds
// config.Config, through promoted methods:
//
//	type MyConfig struct {
//	    config.Config `yaml:",inline" mapstructure:",squash"`
//	    Upstream string `yaml:"upstream" mapstructure:"upstream"`
//	}
type Config interface {
	GetConfig() *config.Config
	ApplyDefaults()
	Validate() error
}
