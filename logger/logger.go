// Package logger owns logging setup for the application.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the application logger. With detailed=true the level drops to
// debug and callers are annotated.
func New(detailed bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if detailed {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.DisableCaller = true
	}
	return cfg.Build()
}

// Sink adapts a zap logger to the plain message sink the agent components
// take.
func Sink(l *zap.Logger) func(string) {
	if l == nil {
		return func(string) {}
	}
	return func(msg string) { l.Info(msg) }
}
