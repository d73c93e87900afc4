// Package entity holds the typed telemetry events produced by the capture
// layer. Events are immutable once created; they are destroyed after a
// successful upload or store eviction.
package entity

import (
	"revi/agent-core/internal/modules/breadcrumb"
)

// Severity grades a captured error.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Viewport is the host display snapshot attached to an error.
type Viewport struct {
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	DPR     float64 `json:"dpr,omitempty"`
	ScrollX int     `json:"scroll_x,omitempty"`
	ScrollY int     `json:"scroll_y,omitempty"`
}

// UserContext identifies the affected user, as far as the host shares it.
type UserContext struct {
	ID       string `json:"id,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

// ErrorEvent is one captured error with its full grouping and correlation
// context.
type ErrorEvent struct {
	ID        string   `json:"id"`
	Timestamp int64    `json:"timestamp"`
	Message   string   `json:"message"`
	Stack     []string `json:"stack,omitempty"`
	URL       string   `json:"url,omitempty"`
	SessionID string   `json:"session_id"`

	UserAgent string    `json:"user_agent,omitempty"`
	Viewport  *Viewport `json:"viewport,omitempty"`

	Tags     map[string]string `json:"tags,omitempty"`
	Severity Severity          `json:"severity"`

	Fingerprint string `json:"fingerprint"`
	PatternHash string `json:"pattern_hash"`
	Title       string `json:"title,omitempty"`

	TraceID      string `json:"trace_id,omitempty"`
	SpanID       string `json:"span_id,omitempty"`
	ParentSpanID string `json:"parent_span_id,omitempty"`

	User        *UserContext            `json:"user,omitempty"`
	Breadcrumbs []breadcrumb.Breadcrumb `json:"breadcrumbs,omitempty"`
	Extra       map[string]any          `json:"extra,omitempty"`
}

// NetworkEvent records one monitored outgoing request. A zero status means
// the transport itself failed.
type NetworkEvent struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Status int    `json:"status"`

	RequestSize  int64 `json:"request_size"`
	ResponseSize int64 `json:"response_size"`

	RequestBody  string `json:"request_body,omitempty"`
	ResponseBody string `json:"response_body,omitempty"`

	RequestHeaders  map[string]string `json:"request_headers,omitempty"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`

	TraceID      string `json:"trace_id,omitempty"`
	SpanID       string `json:"span_id,omitempty"`
	ParentSpanID string `json:"parent_span_id,omitempty"`

	StartedAt  int64 `json:"started_at"`
	DurationMs int64 `json:"duration_ms"`
}

// SessionEvent is the envelope for session-scoped telemetry: lifecycle
// transitions, performance captures and replay chunks. Data for unknown
// event types is an opaque key-value map.
type SessionEvent struct {
	SessionID string         `json:"session_id"`
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// WebVitals is the host-reported vital set.
type WebVitals struct {
	LCP  float64 `json:"lcp"`
	FID  float64 `json:"fid"`
	CLS  float64 `json:"cls"`
	FCP  float64 `json:"fcp"`
	TTFB float64 `json:"ttfb"`
}
