package resilience

import (
	"context"
	"sync"
	"time"

	"revi/agent-core/internal/infrastructure/config"
	"revi/agent-core/internal/infrastructure/logger"
	"revi/agent-core/internal/infrastructure/telemetry/metrics"
	"revi/agent-core/internal/pkg/agenterror"
)

// CircuitState is the breaker position for one endpoint.
type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half-open"
)

type outcome struct {
	at      time.Time
	success bool
}

// Circuit is a per-endpoint three-state breaker. Closed passes calls and
// keeps a rolling outcome window; Open fails fast until the cooldown
// elapses; Half-Open admits a bounded number of probes.
type Circuit struct {
	name    string
	cfg     config.CircuitConfig
	log     logger.Logger
	metrics metrics.Metrics

	mu               sync.Mutex
	state            CircuitState
	window           []outcome
	consecutiveFails int
	lastChange       time.Time
	cooldown         time.Duration
	probesInFlight   int
	halfOpenSuccess  int
	now              func() time.Time
}

// Snapshot is the observable breaker state.
type Snapshot struct {
	Name             string       `json:"name"`
	State            CircuitState `json:"state"`
	ConsecutiveFails int          `json:"consecutive_fails"`
	WindowCalls      int          `json:"window_calls"`
	WindowFailures   int          `json:"window_failures"`
	LastChange       int64        `json:"last_change"`
	Cooldown         string       `json:"cooldown"`
}

func NewCircuit(name string, cfg config.CircuitConfig, log logger.Logger, m metrics.Metrics) *Circuit {
	return &Circuit{
		name:     name,
		cfg:      cfg,
		log:      log.WithField("component", "circuit").WithField("endpoint", name),
		metrics:  m,
		state:    StateClosed,
		cooldown: cfg.Cooldown,
		now:      time.Now,
	}
}

// Call runs op under the breaker. While Open it fails in O(1) with
// CircuitOpen and never invokes op.
func (c *Circuit) Call(ctx context.Context, op Operation) error {
	probe, err := c.admit()
	if err != nil {
		return err
	}

	opErr := op(ctx)
	c.record(opErr == nil, probe)
	return opErr
}

// admit decides whether a call may proceed. It returns probe=true when the
// call is a half-open probe.
func (c *Circuit) admit() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return false, nil

	case StateOpen:
		if c.now().Sub(c.lastChange) < c.cooldown {
			return false, agenterror.NewCircuitOpen(c.name)
		}
		c.transition(StateHalfOpen)
		c.probesInFlight = 1
		c.halfOpenSuccess = 0
		return true, nil

	default: // StateHalfOpen
		if c.probesInFlight >= c.cfg.HalfOpenProbes {
			return false, agenterror.NewCircuitOpen(c.name)
		}
		c.probesInFlight++
		return true, nil
	}
}

func (c *Circuit) record(success bool, probe bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if c.state == StateHalfOpen {
		c.probesInFlight--
		if !success {
			// Any half-open failure reopens with a longer cooldown.
			c.growCooldown()
			c.transition(StateOpen)
			return
		}
		c.halfOpenSuccess++
		if c.halfOpenSuccess >= c.cfg.SuccessThreshold {
			c.cooldown = c.cfg.Cooldown
			c.consecutiveFails = 0
			c.window = nil
			c.transition(StateClosed)
		}
		return
	}

	c.window = append(c.window, outcome{at: now, success: success})
	c.pruneWindow(now)

	if success {
		c.consecutiveFails = 0
		return
	}
	c.consecutiveFails++

	if c.state == StateClosed && c.shouldTrip() {
		c.transition(StateOpen)
	}
}

// shouldTrip applies both thresholds: consecutive failures, or failure rate
// over a sufficiently populated window.
func (c *Circuit) shouldTrip() bool {
	if c.consecutiveFails >= c.cfg.ConsecutiveFailures {
		return true
	}

	calls := len(c.window)
	if calls < c.cfg.MinCalls {
		return false
	}
	failures := 0
	for _, o := range c.window {
		if !o.success {
			failures++
		}
	}
	return float64(failures)/float64(calls) >= c.cfg.FailureRate
}

// pruneWindow keeps the outcome window within both bounds: at most
// WindowSize entries, none older than WindowDuration.
func (c *Circuit) pruneWindow(now time.Time) {
	cutoff := now.Add(-c.cfg.WindowDuration)
	start := 0
	for start < len(c.window) && c.window[start].at.Before(cutoff) {
		start++
	}
	if over := len(c.window) - start - c.cfg.WindowSize; over > 0 {
		start += over
	}
	if start > 0 {
		c.window = append([]outcome(nil), c.window[start:]...)
	}
}

func (c *Circuit) growCooldown() {
	c.cooldown *= 2
	if c.cooldown > c.cfg.MaxCooldown {
		c.cooldown = c.cfg.MaxCooldown
	}
}

func (c *Circuit) transition(next CircuitState) {
	if c.state == next {
		return
	}
	prev := c.state
	c.state = next
	c.lastChange = c.now()

	c.metrics.Incr("circuit.transition", []string{
		"endpoint:" + c.name,
		"from:" + string(prev),
		"to:" + string(next),
	})
	c.log.WithFields(map[string]any{
		"from":        string(prev),
		"to":          string(next),
		"cooldown_ms": c.cooldown.Milliseconds(),
	}).Info("Circuit state changed")
}

// State returns the current position without mutating anything.
func (c *Circuit) State() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot exposes breaker internals for observability.
func (c *Circuit) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	failures := 0
	for _, o := range c.window {
		if !o.success {
			failures++
		}
	}
	return Snapshot{
		Name:             c.name,
		State:            c.state,
		ConsecutiveFails: c.consecutiveFails,
		WindowCalls:      len(c.window),
		WindowFailures:   failures,
		LastChange:       c.lastChange.UnixMilli(),
		Cooldown:         c.cooldown.String(),
	}
}

// Breakers is a registry of circuits keyed by feature/endpoint.
type Breakers struct {
	cfg     config.CircuitConfig
	log     logger.Logger
	metrics metrics.Metrics

	mu       sync.Mutex
	circuits map[string]*Circuit
}

func NewBreakers(cfg config.CircuitConfig, log logger.Logger, m metrics.Metrics) *Breakers {
	return &Breakers{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		circuits: make(map[string]*Circuit),
	}
}

// Get returns the circuit for name, creating it on first use.
func (b *Breakers) Get(name string) *Circuit {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[name]
	if !ok {
		c = NewCircuit(name, b.cfg, b.log, b.metrics)
		b.circuits[name] = c
	}
	return c
}

// Snapshots lists every known circuit's state.
func (b *Breakers) Snapshots() []Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Snapshot, 0, len(b.circuits))
	for _, c := range b.circuits {
		out = append(out, c.Snapshot())
	}
	return out
}
