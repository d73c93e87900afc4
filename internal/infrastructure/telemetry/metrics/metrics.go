// Package metrics provides an abstraction layer for agent self-telemetry.
package metrics

import (
	"time"

	"revi/agent-core/internal/infrastructure/config"
)

// Metrics defines the interface for recording agent performance data.
// It allows the agent to be agnostic of the underlying provider
// (Datadog, OTel, Prometheus).
type Metrics interface {
	// Incr increments a counter by 1. Use this for tracking event occurrences
	// (captures, drops, flushes, circuit transitions).
	Incr(name string, tags []string)

	// Distribution records numeric values for statistical analysis (e.g., payload size).
	Distribution(name string, value float64, tags []string)

	// Timing records the duration of an operation.
	Timing(name string, value time.Duration, tags []string)

	// RecordSubmission captures delivery data for one upload to the
	// ingestion service.
	//
	// Parameters:
	//   - endpoint: The ingestion endpoint path (e.g., "/api/capture/error").
	//   - status: The final HTTP response code (0 for transport failure).
	//   - duration: Total submission time in seconds (float64).
	RecordSubmission(endpoint string, status int, duration float64)

	// Close flushes any buffered metrics and closes the connection to the provider.
	Close() error
}

// New creates a new Metrics instance based on the provided TelemetryConfig.
// It returns a NoOp (No-Operation) implementation if telemetry is disabled.
// Supported types: "datadog", "otel", "prometheus".
//
// Example:
//
//	m, err := metrics.New(&cfg.Telemetry, "production")
func New(cfg *config.TelemetryConfig, env string) (Metrics, error) {
	if !cfg.Enabled {
		return NewNoOpMetrics(), nil
	}

	switch cfg.Type {
	case "datadog":
		return NewDatadogMetrics(
			cfg.MetricsAddress,
			cfg.Namespace,
			[]string{"env:" + env},
		)
	case "otel":
		return NewOTelMetrics(
			cfg.MetricsAddress,
			cfg.Namespace,
			[]string{"env:" + env},
		)
	case "prometheus":
		return NewPrometheusMetrics(cfg.Namespace), nil
	default:
		return NewNoOpMetrics(), nil
	}
}
