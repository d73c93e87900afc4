// Package logger provides a unified logging interface for the agent,
// supporting multiple drivers and context-aware metadata extraction.
package logger

import (
	"context"

	"revi/agent-core/internal/infrastructure/config"
	"revi/agent-core/internal/infrastructure/telemetry/tracer"
)

// Logger defines the standard interface for structured logging across the agent.
// It supports chaining for context and field enrichment.
type Logger interface {
	// WithContext extracts metadata from the context (e.g., TraceID, SessionID)
	// and returns a new Logger instance with these fields attached.
	WithContext(ctx context.Context) Logger

	// WithField adds a single key-value pair to the logging context.
	WithField(key string, value any) Logger

	// WithFields adds multiple key-value pairs to the logging context.
	WithFields(fields map[string]any) Logger

	// Debug logs a message at the Debug level. Use this for verbose development info.
	Debug(message string)
	// Info logs a message at the Info level. This is the default for general agent flow.
	Info(message string)
	// Warn logs a message at the Warn level. Use for non-critical issues that need attention.
	Warn(message string)
	// Error logs a message at the Error level. Use for critical failures or caught exceptions.
	Error(message string)
}

// New creates and returns a Logger implementation based on the agent environment.
//
// Logic:
//   - "production": Returns a Logrus logger (optimized for JSON/structured log aggregation).
//   - "staging": Returns a Logrus logger (optimized for JSON/structured log aggregation).
//   - "development": Returns a Stdout logger (optimized for human readability/tinted output).
//   - default: Returns a NoOp logger (disables all logging).
//
// The debug init flag forces the Stdout logger regardless of environment so a
// host application can watch the agent work.
//
// Example:
//
//	log := logger.New(cfg, trc)
//	log.WithContext(ctx).Info("Agent started")
func New(cfg *config.Config, trc tracer.Tracer) Logger {
	if cfg.Agent.Debug {
		return NewStdoutLogger(cfg, trc)
	}

	switch cfg.Agent.Environment {
	case "production", "staging":
		return NewLogrus(cfg, trc)
	case "development":
		return NewStdoutLogger(cfg, trc)
	default:
		return NewNoOpLogger()
	}
}
