package agenterror

import (
	"fmt"
	"time"
)

// New is the generic constructor for AgentError.
func New(code, message string, kind Kind, err ...error) *AgentError {
	agentErr := &AgentError{
		Code:    code,
		Message: message,
		Kind:    kind,
	}
	if len(err) > 0 && err[0] != nil {
		agentErr.Err = err[0]
	}
	return agentErr
}

// NewConfig creates an error with KindConfig.
// Optional: Pass an existing error as the 3rd argument to wrap it.
func NewConfig(code, message string, err ...error) *AgentError {
	return New(code, message, KindConfig, err...)
}

// NewTransport creates an error with KindTransport.
func NewTransport(code, message string, err ...error) *AgentError {
	return New(code, message, KindTransport, err...)
}

// NewInternal creates an error with KindInternal.
func NewInternal(code, message string, err ...error) *AgentError {
	return New(code, message, KindInternal, err...)
}

// NewAborted wraps a cancellation into the distinguished aborted failure.
func NewAborted(err error) *AgentError {
	return New(CodeAborted, "Operation aborted", KindAborted, err)
}

// NewCircuitOpen reports a fail-fast refusal for the given endpoint.
func NewCircuitOpen(endpoint string) *AgentError {
	return New(CodeCircuitOpen, fmt.Sprintf("circuit open for %s", endpoint), KindCircuitOpen)
}

// FromStatus classifies an HTTP response status into the error taxonomy.
// A zero status means the transport itself failed. retryAfter carries the
// parsed Retry-After header value when the server provided one.
func FromStatus(status int, retryAfter time.Duration, err error) *AgentError {
	switch {
	case status == 0:
		return &AgentError{
			Code:    CodeTransport,
			Message: "transport failure",
			Kind:    KindTransport,
			Err:     err,
		}
	case status == 401:
		return &AgentError{
			Code:    CodeUnauthorized,
			Message: "missing or invalid API key",
			Kind:    KindServerTerminal,
			Status:  status,
			Err:     err,
		}
	case retryableStatuses[status]:
		return &AgentError{
			Code:       fmt.Sprintf("%s_%d", CodeServerRetryable, status),
			Message:    fmt.Sprintf("server responded %d", status),
			Kind:       KindServerRetryable,
			Status:     status,
			RetryAfter: retryAfter,
			Err:        err,
		}
	case terminalStatuses[status] || (status >= 400 && status < 500):
		return &AgentError{
			Code:    fmt.Sprintf("%s_%d", CodeServerTerminal, status),
			Message: fmt.Sprintf("server responded %d", status),
			Kind:    KindServerTerminal,
			Status:  status,
			Err:     err,
		}
	case status >= 500:
		return &AgentError{
			Code:       fmt.Sprintf("%s_%d", CodeServerRetryable, status),
			Message:    fmt.Sprintf("server responded %d", status),
			Kind:       KindServerRetryable,
			Status:     status,
			RetryAfter: retryAfter,
			Err:        err,
		}
	default:
		return &AgentError{
			Code:    CodeInternalError,
			Message: fmt.Sprintf("unexpected status %d", status),
			Kind:    KindInternal,
			Status:  status,
			Err:     err,
		}
	}
}
