package metrics

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type prometheusMetrics struct {
	namespace string
	registry  *prometheus.Registry

	mu       sync.Mutex
	counters map[string]*prometheus.CounterVec
	histos   map[string]*prometheus.HistogramVec

	submissions *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

var _ Metrics = (*prometheusMetrics)(nil)

// NewPrometheusMetrics registers agent metrics on a dedicated registry so a
// host application can expose them on its own /metrics endpoint via
// Registry().
func NewPrometheusMetrics(namespace string) Metrics {
	registry := prometheus.NewRegistry()

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: sanitize(namespace),
		Name:      "upload_total",
		Help:      "Total uploads to the ingestion service",
	}, []string{"endpoint", "status", "status_group"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: sanitize(namespace),
		Name:      "upload_duration_seconds",
		Help:      "Upload latency to the ingestion service",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"endpoint", "status", "status_group"})

	registry.MustRegister(submissions, latency)

	return &prometheusMetrics{
		namespace:   sanitize(namespace),
		registry:    registry,
		counters:    make(map[string]*prometheus.CounterVec),
		histos:      make(map[string]*prometheus.HistogramVec),
		submissions: submissions,
		latency:     latency,
	}
}

func (m *prometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *prometheusMetrics) Incr(name string, tags []string) {
	c := m.counter(name)
	c.With(labelsFromTags(tags)).Inc()
}

func (m *prometheusMetrics) Distribution(name string, value float64, tags []string) {
	h := m.histogram(name)
	h.With(labelsFromTags(tags)).Observe(value)
}

func (m *prometheusMetrics) Timing(name string, value time.Duration, tags []string) {
	m.Distribution(name+"_duration", value.Seconds(), tags)
}

func (m *prometheusMetrics) RecordSubmission(endpoint string, status int, duration float64) {
	labels := prometheus.Labels{
		"endpoint":     endpoint,
		"status":       fmt.Sprintf("%d", status),
		"status_group": fmt.Sprintf("%dxx", status/100),
	}
	m.submissions.With(labels).Inc()
	m.latency.With(labels).Observe(duration)
}

func (m *prometheusMetrics) Close() error { return nil }

// counter lazily registers a CounterVec on the first call for a name.
// Prometheus requires a fixed label schema per metric, so tags are folded
// into a single "tags" label to stay schema-stable.
func (m *prometheusMetrics) counter(name string) *prometheus.CounterVec {
	m.mu.Lock()
	defer m.mu.Unlock()

	clean := sanitize(name)
	if c, ok := m.counters[clean]; ok {
		return c
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      clean,
		Help:      "Total count of " + name,
	}, []string{"tags"})
	m.registry.MustRegister(c)
	m.counters[clean] = c
	return c
}

func (m *prometheusMetrics) histogram(name string) *prometheus.HistogramVec {
	m.mu.Lock()
	defer m.mu.Unlock()

	clean := sanitize(name)
	if h, ok := m.histos[clean]; ok {
		return h
	}
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      clean,
		Help:      "Distribution of " + name,
	}, []string{"tags"})
	m.registry.MustRegister(h)
	m.histos[clean] = h
	return h
}

func labelsFromTags(tags []string) prometheus.Labels {
	return prometheus.Labels{"tags": strings.Join(tags, ",")}
}

func sanitize(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
