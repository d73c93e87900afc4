package resilience

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"revi/agent-core/internal/infrastructure/config"
	"revi/agent-core/internal/infrastructure/logger"
	"revi/agent-core/internal/infrastructure/telemetry/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHealthConfig() config.HealthConfig {
	return config.HealthConfig{
		Interval:     30 * time.Second,
		ProbeTimeout: 2 * time.Second,
	}
}

func TestHealthMonitorClassifiesHealthyEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := NewHealthMonitor([]string{srv.URL}, testHealthConfig(), logger.NewNoOpLogger(), metrics.NewNoOpMetrics())
	for i := 0; i < 5; i++ {
		h.ProbeAll(context.Background())
	}

	health := h.Health(srv.URL)
	assert.Equal(t, QualityExcellent, health.Quality)
	assert.Equal(t, 1.0, health.SuccessRate)
	assert.Equal(t, srv.URL, h.Primary())
}

func TestHealthMonitorClassifiesFailingEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := NewHealthMonitor([]string{srv.URL}, testHealthConfig(), logger.NewNoOpLogger(), metrics.NewNoOpMetrics())
	for i := 0; i < 5; i++ {
		h.ProbeAll(context.Background())
	}

	assert.Equal(t, QualityPoor, h.Health(srv.URL).Quality)
	assert.Equal(t, QualityPoor, h.Quality())
}

func TestHealthMonitorUnknownBeforeProbes(t *testing.T) {
	h := NewHealthMonitor([]string{"http://example.invalid"}, testHealthConfig(), logger.NewNoOpLogger(), metrics.NewNoOpMetrics())

	assert.Equal(t, QualityUnknown, h.Health("http://example.invalid").Quality)
}

func TestHealthMonitorPrefersBestRegion(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer bad.Close()

	h := NewHealthMonitor([]string{bad.URL, good.URL}, testHealthConfig(), logger.NewNoOpLogger(), metrics.NewNoOpMetrics())
	for i := 0; i < 5; i++ {
		h.ProbeAll(context.Background())
	}

	require.Equal(t, good.URL, h.Primary())
	assert.Len(t, h.Snapshot(), 2)
}
