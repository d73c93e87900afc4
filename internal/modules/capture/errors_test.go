package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"revi/agent-core/internal/infrastructure/config"
	"revi/agent-core/internal/infrastructure/logger"
	"revi/agent-core/internal/infrastructure/telemetry/metrics"
	"revi/agent-core/internal/infrastructure/telemetry/tracer"
	"revi/agent-core/internal/modules/breadcrumb"
	"revi/agent-core/internal/modules/capture/entity"
	"revi/agent-core/internal/modules/fingerprint"
	"revi/agent-core/internal/modules/offline"
	"revi/agent-core/internal/modules/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatchRecorder struct {
	mu         sync.Mutex
	errorEvs   []*entity.ErrorEvent
	priorities []offline.Priority
	sessionEvs []*entity.SessionEvent
}

func (d *dispatchRecorder) DispatchError(ctx context.Context, ev *entity.ErrorEvent, p offline.Priority) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errorEvs = append(d.errorEvs, ev)
	d.priorities = append(d.priorities, p)
}

func (d *dispatchRecorder) DispatchNetwork(ctx context.Context, evs []*entity.NetworkEvent) {}

func (d *dispatchRecorder) DispatchSession(ctx context.Context, evs []*entity.SessionEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessionEvs = append(d.sessionEvs, evs...)
}

func newErrorCaptureFixture() (*ErrorCapture, *dispatchRecorder, *breadcrumb.Ring, *Session) {
	rec := &dispatchRecorder{}
	crumbs := breadcrumb.NewRing(10)
	session := NewSession(rec)
	sampler := resilience.NewSampler(
		map[resilience.EventKind]float64{resilience.KindError: 1},
		config.RateLimitConfig{Events: 1000, Window: time.Minute},
	)
	ec := NewErrorCapture(
		fingerprint.New(), crumbs, sampler, session, tracer.NewNoOpTracer(),
		rec, logger.NewNoOpLogger(), metrics.NewNoOpMetrics(),
	)
	return ec, rec, crumbs, session
}

func TestCaptureExceptionProducesEvent(t *testing.T) {
	ec, rec, crumbs, session := newErrorCaptureFixture()

	crumbs.Push(breadcrumb.Breadcrumb{Category: breadcrumb.CategoryUI, Message: "clicked save"})
	session.SetUser(&entity.UserContext{ID: "u1"})

	id := ec.CaptureException(context.Background(), errors.New("boom at /app/x.js:1:2"), CaptureOptions{
		Tags: map[string]string{"feature": "checkout"},
	})

	require.NotEmpty(t, id)
	require.Len(t, rec.errorEvs, 1)

	ev := rec.errorEvs[0]
	assert.Equal(t, id, ev.ID)
	assert.Equal(t, entity.SeverityError, ev.Severity)
	assert.NotEmpty(t, ev.Fingerprint)
	assert.NotEmpty(t, ev.PatternHash)
	assert.Equal(t, session.ID(), ev.SessionID)
	assert.Equal(t, "u1", ev.User.ID)
	assert.Equal(t, "checkout", ev.Tags["feature"])

	// The timeline snapshot travels with the event.
	require.NotEmpty(t, ev.Breadcrumbs)
	assert.Equal(t, "clicked save", ev.Breadcrumbs[0].Message)
}

func TestCaptureNilErrorIsNoop(t *testing.T) {
	ec, rec, _, _ := newErrorCaptureFixture()

	assert.Empty(t, ec.CaptureException(context.Background(), nil, CaptureOptions{}))
	assert.Empty(t, rec.errorEvs)
}

func TestCaptureMessageDefaultsToInfo(t *testing.T) {
	ec, rec, _, _ := newErrorCaptureFixture()

	id := ec.CaptureMessage(context.Background(), "deployment finished", CaptureOptions{})

	require.NotEmpty(t, id)
	assert.Equal(t, entity.SeverityInfo, rec.errorEvs[0].Severity)
	assert.Equal(t, offline.PriorityMedium, rec.priorities[0])
}

func TestUncaughtErrorsGetHighPriority(t *testing.T) {
	ec, rec, _, _ := newErrorCaptureFixture()

	id := ec.CaptureUncaught(context.Background(), "TypeError: x is undefined", "at run (/app/a.js:3:4)", "https://site.test/p/1")

	require.NotEmpty(t, id)
	assert.Equal(t, entity.SeverityCritical, rec.errorEvs[0].Severity)
	assert.Equal(t, offline.PriorityHigh, rec.priorities[0])
	assert.NotEmpty(t, rec.errorEvs[0].Stack)
}

func TestRecoverCapturesPanic(t *testing.T) {
	ec, rec, _, _ := newErrorCaptureFixture()

	func() {
		defer ec.Recover(context.Background(), false)
		panic("exploded")
	}()

	require.Len(t, rec.errorEvs, 1)
	assert.Contains(t, rec.errorEvs[0].Message, "exploded")
	assert.Equal(t, offline.PriorityHigh, rec.priorities[0])
}

func TestSessionEndRotatesID(t *testing.T) {
	_, rec, _, session := newErrorCaptureFixture()

	before := session.ID()
	session.End(context.Background())
	after := session.ID()

	assert.NotEqual(t, before, after)
	require.Len(t, rec.sessionEvs, 1)
	assert.Equal(t, "session_end", rec.sessionEvs[0].EventType)
	assert.Equal(t, before, rec.sessionEvs[0].SessionID)
}

func TestConsoleErrorBecomesBreadcrumbAndEvent(t *testing.T) {
	ec, rec, crumbs, _ := newErrorCaptureFixture()
	console := NewConsole(crumbs, ec)

	console.Capture("warn", "low disk")
	console.Capture("error", "request failed:", 502)

	require.GreaterOrEqual(t, crumbs.Len(), 2)
	require.Len(t, rec.errorEvs, 1)
	assert.Contains(t, rec.errorEvs[0].Message, "request failed")
}
