// Package logger wraps zap with leveled initialization for the server.
package logger

import (
	"go.uber.org/zap"
)

// Logger carries the application's structured logger.
type Logger struct {
	// Log is the underlying zap logger. Nop until Init is called.
	Log *zap.Logger
}

// New returns a Logger with a no-op zap instance so callers can log
// safely before Init.
func New() *Logger {
	return &Logger{Log: zap.NewNop()}
}

// Init builds the production zap logger at the given level
// ("Debug", "Info", "Warn", "Error") and installs it on l.
func (l *Logger) Init(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl

	log, err := cfg.Build()
	if err != nil {
		return err
	}
	l.Log = log
	return nil
}
