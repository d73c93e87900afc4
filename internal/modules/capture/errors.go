package capture

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"revi/agent-core/internal/infrastructure/logger"
	"revi/agent-core/internal/infrastructure/telemetry/metrics"
	"revi/agent-core/internal/infrastructure/telemetry/tracer"
	"revi/agent-core/internal/modules/breadcrumb"
	"revi/agent-core/internal/modules/capture/entity"
	"revi/agent-core/internal/modules/fingerprint"
	"revi/agent-core/internal/modules/offline"
	"revi/agent-core/internal/modules/resilience"
	"revi/agent-core/internal/pkg/uid"
)

// CaptureOptions carries per-call overrides for explicit captures.
type CaptureOptions struct {
	Level Severity
	Tags  map[string]string
	Extra map[string]any
	URL   string
	Stack string
}

// Severity aliases the entity type for caller convenience.
type Severity = entity.Severity

// ErrorCapture builds ErrorEvents from explicit calls, recovered panics and
// host-forwarded uncaught errors, and hands them to the pipeline.
type ErrorCapture struct {
	fp       *fingerprint.Fingerprinter
	crumbs   *breadcrumb.Ring
	sampler  *resilience.Sampler
	session  *Session
	tracer   tracer.Tracer
	dispatch Dispatcher
	log      logger.Logger
	metrics  metrics.Metrics
	now      func() time.Time
}

func NewErrorCapture(
	fp *fingerprint.Fingerprinter,
	crumbs *breadcrumb.Ring,
	sampler *resilience.Sampler,
	session *Session,
	trc tracer.Tracer,
	dispatch Dispatcher,
	log logger.Logger,
	m metrics.Metrics,
) *ErrorCapture {
	return &ErrorCapture{
		fp:       fp,
		crumbs:   crumbs,
		sampler:  sampler,
		session:  session,
		tracer:   trc,
		dispatch: dispatch,
		log:      log.WithField("component", "error_capture"),
		metrics:  m,
		now:      time.Now,
	}
}

// CaptureException records an error value. It never panics; internal
// failures are swallowed after a log line. The returned event id is empty
// when the sampler rejected the event.
func (e *ErrorCapture) CaptureException(ctx context.Context, err error, opts CaptureOptions) (eventID string) {
	defer e.recoverInternal("CaptureException")

	if err == nil {
		return ""
	}
	if opts.Level == "" {
		opts.Level = entity.SeverityError
	}
	if opts.Stack == "" {
		opts.Stack = string(debug.Stack())
	}
	return e.capture(ctx, err.Error(), opts, false)
}

// CaptureMessage records a free-form message at the given level.
func (e *ErrorCapture) CaptureMessage(ctx context.Context, message string, opts CaptureOptions) (eventID string) {
	defer e.recoverInternal("CaptureMessage")

	if message == "" {
		return ""
	}
	if opts.Level == "" {
		opts.Level = entity.SeverityInfo
	}
	return e.capture(ctx, message, opts, false)
}

// CaptureUncaught records an error the host runtime could not handle: the
// equivalent of a global error hook. Uncaught errors carry critical severity
// and are queued at high priority.
func (e *ErrorCapture) CaptureUncaught(ctx context.Context, message, stack, url string) (eventID string) {
	defer e.recoverInternal("CaptureUncaught")

	return e.capture(ctx, message, CaptureOptions{
		Level: entity.SeverityCritical,
		Stack: stack,
		URL:   url,
	}, true)
}

// Recover is a deferred hook that converts a panic into a critical
// capture and re-panics when rethrow is set. Usage:
//
//	defer errorCapture.Recover(ctx, false)
func (e *ErrorCapture) Recover(ctx context.Context, rethrow bool) {
	if r := recover(); r != nil {
		e.CaptureUncaught(ctx, fmt.Sprintf("panic: %v", r), string(debug.Stack()), "")
		if rethrow {
			panic(r)
		}
	}
}

func (e *ErrorCapture) capture(ctx context.Context, message string, opts CaptureOptions, uncaught bool) string {
	alwaysAdmit := uncaught || opts.Level == entity.SeverityCritical || opts.Level == entity.SeverityError
	if !e.sampler.Admit(resilience.KindError, alwaysAdmit) {
		e.metrics.Incr("capture.sampled_out", []string{"kind:error"})
		return ""
	}

	fp := e.fp.Fingerprint(message, opts.Stack, opts.URL)

	ev := &entity.ErrorEvent{
		ID:          uid.NewEventID(),
		Timestamp:   e.now().UnixMilli(),
		Message:     message,
		URL:         opts.URL,
		SessionID:   e.session.ID(),
		Tags:        opts.Tags,
		Severity:    opts.Level,
		Fingerprint: fp.Fingerprint,
		PatternHash: fp.PatternHash,
		Title:       fp.Title,
		User:        e.session.User(),
		Breadcrumbs: e.crumbs.Snapshot(),
		Extra:       opts.Extra,
	}
	if fp.NormalizedStack != "" {
		ev.Stack = strings.Split(fp.NormalizedStack, "\n")
	}
	ev.UserAgent, ev.Viewport = e.session.Environment()

	if traceID, spanID, ok := e.tracer.ExtractTraceInfo(ctx); ok {
		ev.TraceID = traceID
		ev.ParentSpanID = spanID
		ev.SpanID = uid.NewSpanID()
	}

	// Anchor the error in the timeline so later events can be correlated.
	e.crumbs.Push(breadcrumb.Breadcrumb{
		Timestamp: ev.Timestamp,
		Category:  breadcrumb.CategoryCustom,
		Level:     string(opts.Level),
		Message:   "error captured: " + fp.Title,
		Data:      map[string]any{"event_id": ev.ID},
	})

	priority := offline.PriorityMedium
	if uncaught || opts.Level == entity.SeverityCritical {
		priority = offline.PriorityHigh
	}

	e.metrics.Incr("capture.error", []string{"severity:" + string(opts.Level)})
	e.dispatch.DispatchError(ctx, ev, priority)
	return ev.ID
}

func (e *ErrorCapture) recoverInternal(site string) {
	if r := recover(); r != nil {
		e.log.WithFields(map[string]any{
			"site":  site,
			"panic": fmt.Sprintf("%v", r),
		}).Error("Internal capture failure suppressed")
		e.metrics.Incr("capture.internal_error", []string{"site:" + site})
	}
}
