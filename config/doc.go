// Package config loads the process configuration with Viper.
//
// Sources are layered: a YAML file (searched under ./cmd/<service>/,
// ./config/ and the working directory), a dotenv file, then the
// environment. Config aggregates every package's settings:
//
//	cfg, err := config.Load("ingest")
//
// Environment variables override file values by nesting underscores:
// SUPERVISOR_RESTART_DELAY=2s sets supervisor.restart_delay.
package config
