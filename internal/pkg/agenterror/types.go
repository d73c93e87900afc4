package agenterror

import (
	"errors"
	"time"
)

// Kind defines the category of the error, determining how the pipeline
// should react (e.g., retrying the submission, failing fast, or re-queueing).
type Kind string

const (
	// KindConfig represents invalid or missing init fields. Fatal at init
	// time; the agent becomes a no-op that logs once.
	KindConfig Kind = "CONFIG"

	// KindTransport represents network/transport failures that might succeed
	// upon retry (e.g., connection refused, DNS failure, timeouts).
	KindTransport Kind = "TRANSPORT"

	// KindServerRetryable represents server responses that invite another
	// attempt (5xx, 408, 425, 429, Retry-After).
	KindServerRetryable Kind = "SERVER_RETRYABLE"

	// KindServerTerminal represents server responses that will fail again
	// with the same payload (other 4xx). The item is dropped.
	KindServerTerminal Kind = "SERVER_TERMINAL"

	// KindCircuitOpen represents a call refused by the circuit breaker.
	// The item remains enqueued; it does not count as a retry.
	KindCircuitOpen Kind = "CIRCUIT_OPEN"

	// KindAborted represents a cancellation signal firing mid-operation.
	// The item remains enqueued.
	KindAborted Kind = "ABORTED"

	// KindStorage represents a degraded persistent store. The agent falls
	// back to in-memory buffering with reduced capacity and warns once.
	KindStorage Kind = "STORAGE_DEGRADED"

	// KindInternal represents unexpected failures inside the agent itself.
	// Caught at every capture boundary; never propagated to the host.
	KindInternal Kind = "INTERNAL"
)

// AgentError is the standardized error structure for the whole agent.
// It wraps raw errors with machine-readable codes and delivery metadata.
type AgentError struct {
	// Code is a machine-readable string (e.g., "SERVER_RETRYABLE_503").
	Code string
	// Message is a human-readable explanation.
	Message string
	// Kind determines retryability and queue behavior.
	Kind Kind
	// Status is the HTTP status that produced the error, 0 for transport.
	Status int
	// RetryAfter carries a server-provided lower bound for the next delay.
	RetryAfter time.Duration
	// Details holds additional context for debugging.
	Details any
	// Err is the original underlying error.
	Err error
}

// Error implements the standard error interface.
func (e *AgentError) Error() string {
	return e.Message
}

// Unwrap allows AgentError to work with errors.Is and errors.As.
func (e *AgentError) Unwrap() error {
	return e.Err
}

// WithError wraps an existing error into the AgentError context.
func (e *AgentError) WithError(err error) *AgentError {
	e.Err = err
	return e
}

// WithDetail adds a key-value pair to the error's details map.
// If the current Details is not a map[string]any, it is initialized as one.
func (e *AgentError) WithDetail(key string, value any) *AgentError {
	currentDetails, ok := e.Details.(map[string]any)
	if !ok || currentDetails == nil {
		currentDetails = make(map[string]any)
	}

	currentDetails[key] = value
	e.Details = currentDetails
	return e
}

// IsRetryable reports whether the submission may be attempted again.
// CircuitOpen and Aborted are deliberately excluded: those items stay
// enqueued but the current attempt chain stops.
func (e *AgentError) IsRetryable() bool {
	return e.Kind == KindTransport || e.Kind == KindServerRetryable
}

// ToMap converts the AgentError to a map for logging purposes.
func (e *AgentError) ToMap() map[string]any {
	return map[string]any{
		"code":         e.Code,
		"kind":         string(e.Kind),
		"status":       e.Status,
		"is_retryable": e.IsRetryable(),
		"details":      e.Details,
		"raw_error":    e.Err,
	}
}

// KindOf extracts the Kind from any error. Non-AgentError values report
// KindInternal; nil reports the empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsRetryable reports whether an arbitrary error is worth retrying.
// Unclassified errors default according to the idempotent flag: an
// idempotent operation may be replayed safely, a non-idempotent one may not.
func IsRetryable(err error, idempotent bool) bool {
	if err == nil {
		return false
	}

	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.IsRetryable()
	}
	return idempotent
}

// RetryAfterOf extracts the server-provided delay lower bound, if any.
func RetryAfterOf(err error) (time.Duration, bool) {
	var ae *AgentError
	if errors.As(err, &ae) && ae.RetryAfter > 0 {
		return ae.RetryAfter, true
	}
	return 0, false
}
