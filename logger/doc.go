// Package logger provides structured logging for warden using zerolog.
//
// It supports JSON and console output, log level configuration, and
// component-scoped loggers with structured fields. Every toolkit package
// accepts a *Logger and falls back to Get(<component>) when none is given.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("supervisor")
//	log.Info("slot started", logger.Fields("service", "alert"))
package logger
