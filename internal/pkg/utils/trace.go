package utils

import (
	"revi/agent-core/internal/infrastructure/telemetry/tracer"
	"revi/agent-core/internal/pkg/agenterror"
)

// RecordSpanError is a global helper to enrich a trace span with error metadata.
// It automatically detects if the error is an agenterror.AgentError and extracts
// machine-readable tags (Code, Kind) and the HTTP status when non-zero.
//
// Parameters:
//   - span: The active tracer span. If nil, this function does nothing.
//   - err: The error to be recorded. If nil, this function does nothing.
func RecordSpanError(span tracer.Span, err error) {
	if err == nil || span == nil {
		return
	}

	// Standard error tags
	span.SetTag("error", true)
	span.SetTag("error.message", err.Error())

	// Enhanced metadata for AgentError
	if agentErr, ok := err.(*agenterror.AgentError); ok {
		span.SetTag("error.code", agentErr.Code)
		span.SetTag("error.kind", string(agentErr.Kind))
		if agentErr.Status != 0 {
			span.SetTag("error.status", agentErr.Status)
		}
	}
}
