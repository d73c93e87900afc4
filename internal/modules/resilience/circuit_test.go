package resilience

import (
	"context"
	"testing"
	"time"

	"revi/agent-core/internal/infrastructure/config"
	"revi/agent-core/internal/infrastructure/logger"
	"revi/agent-core/internal/infrastructure/telemetry/metrics"
	"revi/agent-core/internal/pkg/agenterror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCircuitConfig() config.CircuitConfig {
	return config.CircuitConfig{
		FailureRate:         0.5,
		MinCalls:            10,
		ConsecutiveFailures: 3,
		WindowSize:          20,
		WindowDuration:      10 * time.Second,
		Cooldown:            time.Second,
		MaxCooldown:         time.Minute,
		HalfOpenProbes:      2,
		SuccessThreshold:    2,
	}
}

func newTestCircuit(t *testing.T) (*Circuit, *time.Time) {
	t.Helper()

	now := time.Unix(1700000000, 0)
	c := NewCircuit("/api/capture/error", testCircuitConfig(), logger.NewNoOpLogger(), metrics.NewNoOpMetrics())
	c.now = func() time.Time { return now }
	return c, &now
}

func failOp(ctx context.Context) error {
	return agenterror.FromStatus(503, 0, nil)
}

func okOp(ctx context.Context) error { return nil }

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	c, _ := newTestCircuit(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.Error(t, c.Call(ctx, failOp))
	}
	assert.Equal(t, StateOpen, c.State())

	// Within cooldown the call fails fast without invoking op.
	invoked := false
	err := c.Call(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, invoked)
	assert.Equal(t, agenterror.KindCircuitOpen, agenterror.KindOf(err))
}

func TestCircuitRecoversThroughHalfOpen(t *testing.T) {
	c, now := newTestCircuit(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = c.Call(ctx, failOp)
	}
	require.Equal(t, StateOpen, c.State())

	*now = now.Add(time.Second)

	require.NoError(t, c.Call(ctx, okOp))
	assert.Equal(t, StateHalfOpen, c.State())

	require.NoError(t, c.Call(ctx, okOp))
	assert.Equal(t, StateClosed, c.State())
}

func TestCircuitHalfOpenFailureReopensWithLongerCooldown(t *testing.T) {
	c, now := newTestCircuit(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = c.Call(ctx, failOp)
	}
	*now = now.Add(time.Second)

	require.Error(t, c.Call(ctx, failOp))
	assert.Equal(t, StateOpen, c.State())

	// The original cooldown is no longer enough.
	*now = now.Add(time.Second)
	err := c.Call(ctx, okOp)
	require.Error(t, err)
	assert.Equal(t, agenterror.KindCircuitOpen, agenterror.KindOf(err))

	*now = now.Add(time.Second)
	require.NoError(t, c.Call(ctx, okOp))
	assert.Equal(t, StateHalfOpen, c.State())
}

func TestCircuitOpensOnFailureRate(t *testing.T) {
	c, _ := newTestCircuit(t)
	ctx := context.Background()

	// Alternate to keep consecutive failures below threshold while the
	// window failure rate reaches one half.
	for i := 0; i < 5; i++ {
		_ = c.Call(ctx, failOp)
		_ = c.Call(ctx, okOp)
	}
	require.Equal(t, StateClosed, c.State())

	_ = c.Call(ctx, failOp)
	assert.Equal(t, StateOpen, c.State())
}

func TestCircuitSnapshotExposesState(t *testing.T) {
	c, _ := newTestCircuit(t)
	ctx := context.Background()

	_ = c.Call(ctx, failOp)
	snap := c.Snapshot()

	assert.Equal(t, StateClosed, snap.State)
	assert.Equal(t, 1, snap.WindowCalls)
	assert.Equal(t, 1, snap.WindowFailures)
	assert.Equal(t, 1, snap.ConsecutiveFails)
}

func TestBreakersRegistryReusesCircuits(t *testing.T) {
	b := NewBreakers(testCircuitConfig(), logger.NewNoOpLogger(), metrics.NewNoOpMetrics())

	assert.Same(t, b.Get("a"), b.Get("a"))
	assert.NotSame(t, b.Get("a"), b.Get("b"))
	assert.Len(t, b.Snapshots(), 2)
}
