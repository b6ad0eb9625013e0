package logger

import (
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	global *Logger
	named  = map[string]*Logger{}
)

// Init replaces the global logger and sets zerolog's global level.
func Init(cfg *Config) {
	cfg.ApplyDefaults()
	name := cfg.ServiceName
	if name == "" {
		name = "default"
	}
	if level, err := zerolog.ParseLevel(cfg.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	SetGlobalLogger(New(cfg, name))
}

// SetGlobalLogger replaces the global logger.
func SetGlobalLogger(l *Logger) {
	mu.Lock()
	global = l
	mu.Unlock()
}

// GetGlobalLogger returns the global logger, creating a default one first
// if Init was never called.
func GetGlobalLogger() *Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global = NewDefault("default")
	}
	return global
}

// Register pins the logger returned by Get(name). A nil l removes it.
func Register(name string, l *Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		delete(named, name)
		return
	}
	named[name] = l
}

// Get returns the logger registered under name, or the global logger
// tagged with component=name.
func Get(name string) *Logger {
	mu.RLock()
	l, ok := named[name]
	mu.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// Info logs through the global logger.
func Info(msg string, fields ...map[string]interface{}) {
	GetGlobalLogger().Info(msg, fields...)
}

// Warn logs through the global logger.
func Warn(msg string, fields ...map[string]interface{}) {
	GetGlobalLogger().Warn(msg, fields...)
}

// Error logs through the global logger.
func Error(msg string, fields ...map[string]interface{}) {
	GetGlobalLogger().Error(msg, fields...)
}
