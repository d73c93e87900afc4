package tracer

import (
	"context"
	"net/http"

	"revi/agent-core/internal/pkg/uid"
)

// noOpTracer still mints valid trace/span identifiers so captured events can
// be correlated even when no tracing backend is configured.
type noOpTracer struct{}

type noOpSpan struct{}

var _ Tracer = (*noOpTracer)(nil)

func NewNoOpTracer() Tracer { return &noOpTracer{} }

func (t *noOpTracer) StartSpan(ctx context.Context, name string) (Span, context.Context) {
	return &noOpSpan{}, ctx
}

func (t *noOpTracer) Inject(ctx context.Context, header http.Header) {
	traceID := ctxTraceID(ctx)
	spanID := uid.NewSpanID()
	header.Set(HeaderTraceparent, "00-"+traceID+"-"+spanID+"-01")
	header.Set(HeaderParentSpan, spanID)
}

func (t *noOpTracer) ExtractTraceInfo(ctx context.Context) (traceID, spanID string, ok bool) {
	return "", "", false
}

func (t *noOpTracer) Close() error { return nil }

func (s *noOpSpan) SetOperationName(name string) {}
func (s *noOpSpan) Finish()                      {}
func (s *noOpSpan) SetTag(key string, value any) {}

type noopTraceKey struct{}

// WithGeneratedTrace seeds ctx with a freshly generated trace id. The network
// capture layer calls it for every request; only the no-op tracer reads it.
func WithGeneratedTrace(ctx context.Context) context.Context {
	return context.WithValue(ctx, noopTraceKey{}, uid.NewTraceID())
}

func ctxTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(noopTraceKey{}).(string); ok {
		return id
	}
	return uid.NewTraceID()
}
