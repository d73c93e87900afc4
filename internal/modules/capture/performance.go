package capture

import (
	"context"
	"sync"
	"time"

	"revi/agent-core/internal/infrastructure/config"
	"revi/agent-core/internal/modules/capture/entity"
	"revi/agent-core/internal/modules/resilience"
)

// Performance records user-timing marks, measures, web vitals and host
// navigation/resource timings, and ships them as session events.
type Performance struct {
	cfg      config.PerformanceConfig
	sampler  *resilience.Sampler
	session  *Session
	dispatch Dispatcher

	mu     sync.Mutex
	marks  map[string]time.Time
	vitals entity.WebVitals
	now    func() time.Time
}

func NewPerformance(cfg config.PerformanceConfig, sampler *resilience.Sampler, session *Session, dispatch Dispatcher) *Performance {
	return &Performance{
		cfg:      cfg,
		sampler:  sampler,
		session:  session,
		dispatch: dispatch,
		marks:    make(map[string]time.Time),
		now:      time.Now,
	}
}

// Mark records a named instant.
func (p *Performance) Mark(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marks[name] = p.now()
}

// Measure returns the elapsed milliseconds between two marks. A missing end
// mark measures against now; a missing start mark yields 0.
func (p *Performance) Measure(name, start, end string) float64 {
	p.mu.Lock()
	startAt, ok := p.marks[start]
	endAt, endOk := p.marks[end]
	p.mu.Unlock()

	if !ok {
		return 0
	}
	if !endOk {
		endAt = p.now()
	}

	ms := float64(endAt.Sub(startAt).Microseconds()) / 1000
	if ms < 0 {
		return 0
	}

	p.emit(context.Background(), "measure", map[string]any{
		"name":        name,
		"duration_ms": ms,
	})
	return ms
}

// RecordVitals merges host-observed web vitals; zero fields keep the
// previous observation. A web_vitals event is emitted only when
// CaptureWebVitals is enabled.
func (p *Performance) RecordVitals(ctx context.Context, v entity.WebVitals) {
	p.mu.Lock()
	if v.LCP > 0 {
		p.vitals.LCP = v.LCP
	}
	if v.FID > 0 {
		p.vitals.FID = v.FID
	}
	if v.CLS > 0 {
		p.vitals.CLS = v.CLS
	}
	if v.FCP > 0 {
		p.vitals.FCP = v.FCP
	}
	if v.TTFB > 0 {
		p.vitals.TTFB = v.TTFB
	}
	current := p.vitals
	p.mu.Unlock()

	if !p.cfg.CaptureWebVitals {
		return
	}
	p.emit(ctx, "web_vitals", map[string]any{
		"lcp":  current.LCP,
		"fid":  current.FID,
		"cls":  current.CLS,
		"fcp":  current.FCP,
		"ttfb": current.TTFB,
	})
}

// Vitals returns the latest merged observation.
func (p *Performance) Vitals() entity.WebVitals {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vitals
}

// RecordNavigationTiming ships one navigation timing record.
func (p *Performance) RecordNavigationTiming(ctx context.Context, data map[string]any) {
	if !p.cfg.CaptureNavigationTiming {
		return
	}
	p.emit(ctx, "navigation_timing", data)
}

// RecordResourceTiming ships one resource timing record.
func (p *Performance) RecordResourceTiming(ctx context.Context, data map[string]any) {
	if !p.cfg.CaptureResourceTiming {
		return
	}
	p.emit(ctx, "resource_timing", data)
}

func (p *Performance) emit(ctx context.Context, eventType string, data map[string]any) {
	if !p.sampler.Admit(resilience.KindPerformance, false) {
		return
	}
	p.session.Emit(ctx, eventType, data)
}
