package resilience

import (
	"context"
	"net/http"
	"sync"
	"time"

	"revi/agent-core/internal/infrastructure/config"
	"revi/agent-core/internal/infrastructure/logger"
	"revi/agent-core/internal/infrastructure/telemetry/metrics"
)

// Quality classifies an endpoint's recent behavior.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityPoor      Quality = "poor"
	QualityUnknown   Quality = "unknown"
)

const probeHistory = 20

// EndpointHealth is the published snapshot for one endpoint.
type EndpointHealth struct {
	Endpoint    string        `json:"endpoint"`
	Quality     Quality       `json:"quality"`
	SuccessRate float64       `json:"success_rate"`
	AvgResponse time.Duration `json:"avg_response"`
	LastProbe   int64         `json:"last_probe"`
}

type probeStats struct {
	outcomes  []bool
	durations []time.Duration
	lastProbe time.Time
}

// HealthMonitor periodically probes the configured endpoints and classifies
// their quality. The coordinator and sync manager read its snapshots; a
// region preference list makes the best-health region the primary.
type HealthMonitor struct {
	endpoints []string
	client    *http.Client
	cfg       config.HealthConfig
	log       logger.Logger
	metrics   metrics.Metrics

	mu    sync.Mutex
	stats map[string]*probeStats

	stopOnce sync.Once
	stop     chan struct{}
}

func NewHealthMonitor(endpoints []string, cfg config.HealthConfig, log logger.Logger, m metrics.Metrics) *HealthMonitor {
	return &HealthMonitor{
		endpoints: endpoints,
		client:    &http.Client{Timeout: cfg.ProbeTimeout},
		cfg:       cfg,
		log:       log.WithField("component", "health"),
		metrics:   m,
		stats:     make(map[string]*probeStats),
		stop:      make(chan struct{}),
	}
}

// Start launches the periodic probe loop. It returns immediately; Stop (or
// ctx cancellation) ends the loop.
func (h *HealthMonitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(h.cfg.Interval)
		defer ticker.Stop()

		h.ProbeAll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.stop:
				return
			case <-ticker.C:
				h.ProbeAll(ctx)
			}
		}
	}()
}

func (h *HealthMonitor) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// ProbeAll checks every endpoint once, sequentially. Each probe enforces the
// hard per-probe timeout.
func (h *HealthMonitor) ProbeAll(ctx context.Context) {
	for _, endpoint := range h.endpoints {
		h.probe(ctx, endpoint)
	}
}

func (h *HealthMonitor) probe(ctx context.Context, endpoint string) {
	probeCtx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
	defer cancel()

	start := time.Now()
	ok := false

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, endpoint, nil)
	if err == nil {
		resp, reqErr := h.client.Do(req)
		if reqErr == nil {
			ok = resp.StatusCode < 500
			resp.Body.Close()
		}
	}
	elapsed := time.Since(start)

	h.mu.Lock()
	st, found := h.stats[endpoint]
	if !found {
		st = &probeStats{}
		h.stats[endpoint] = st
	}
	st.outcomes = append(st.outcomes, ok)
	st.durations = append(st.durations, elapsed)
	if len(st.outcomes) > probeHistory {
		st.outcomes = st.outcomes[1:]
		st.durations = st.durations[1:]
	}
	st.lastProbe = time.Now()
	h.mu.Unlock()

	h.metrics.Timing("health.probe", elapsed, []string{"endpoint:" + endpoint, boolTag("ok", ok)})
	h.log.WithFields(map[string]any{
		"endpoint":   endpoint,
		"ok":         ok,
		"elapsed_ms": elapsed.Milliseconds(),
	}).Debug("Endpoint probed")
}

// Health returns the classified snapshot for one endpoint.
func (h *HealthMonitor) Health(endpoint string) EndpointHealth {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.stats[endpoint]
	if !ok || len(st.outcomes) == 0 {
		return EndpointHealth{Endpoint: endpoint, Quality: QualityUnknown}
	}

	succ := 0
	var total time.Duration
	for i, o := range st.outcomes {
		if o {
			succ++
		}
		total += st.durations[i]
	}
	rate := float64(succ) / float64(len(st.outcomes))
	avg := total / time.Duration(len(st.outcomes))

	return EndpointHealth{
		Endpoint:    endpoint,
		Quality:     classify(rate, avg),
		SuccessRate: rate,
		AvgResponse: avg,
		LastProbe:   st.lastProbe.UnixMilli(),
	}
}

// Snapshot lists the health of every configured endpoint.
func (h *HealthMonitor) Snapshot() []EndpointHealth {
	out := make([]EndpointHealth, 0, len(h.endpoints))
	for _, e := range h.endpoints {
		out = append(out, h.Health(e))
	}
	return out
}

// Primary returns the best-health endpoint, respecting configuration order
// on ties. With no endpoints it returns the empty string.
func (h *HealthMonitor) Primary() string {
	best := ""
	bestRank := -1
	for _, e := range h.endpoints {
		rank := qualityRank(h.Health(e).Quality)
		if rank > bestRank {
			best, bestRank = e, rank
		}
	}
	return best
}

// Quality reports the primary endpoint's quality; unknown when nothing has
// been probed yet.
func (h *HealthMonitor) Quality() Quality {
	p := h.Primary()
	if p == "" {
		return QualityUnknown
	}
	return h.Health(p).Quality
}

func classify(rate float64, avg time.Duration) Quality {
	switch {
	case rate > 0.95 && avg < time.Second:
		return QualityExcellent
	case rate > 0.8 && avg < 3*time.Second:
		return QualityGood
	case rate < 0.5:
		return QualityPoor
	default:
		return QualityUnknown
	}
}

func qualityRank(q Quality) int {
	switch q {
	case QualityExcellent:
		return 3
	case QualityGood:
		return 2
	case QualityUnknown:
		return 1
	default:
		return 0
	}
}

func boolTag(name string, v bool) string {
	if v {
		return name + ":true"
	}
	return name + ":false"
}
