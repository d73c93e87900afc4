package resilience

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"revi/agent-core/internal/infrastructure/logger"
	"revi/agent-core/internal/infrastructure/telemetry/metrics"
	"revi/agent-core/internal/modules/offline"
	"revi/agent-core/internal/pkg/agenterror"
	"revi/agent-core/internal/pkg/uid"
)

// Submission describes one payload heading for the ingestion service.
type Submission struct {
	// Feature keys the circuit breaker (usually the endpoint path).
	Feature string
	// Kind partitions the offline store.
	Kind EventKind
	// Priority tags the item if it has to be queued.
	Priority offline.Priority
	// IdempotencyKey overrides the default feature+payload-digest key.
	IdempotencyKey string
	// Payload is what gets queued when delivery fails.
	Payload json.RawMessage
	// FromStore marks items already owned by the offline store: the sync
	// manager does its own bookkeeping, so the coordinator must not requeue.
	FromStore bool
	// Idempotent marks operations safe to replay; unclassified errors are
	// then treated as retryable.
	Idempotent bool
}

// Coordinator is the public request submitter. It wraps every operation
// outside-in: idempotency, then the feature's circuit breaker, then the
// retry engine. Failed payloads land in the offline store instead of
// surfacing to capture sites.
type Coordinator struct {
	retry    *Retrier
	breakers *Breakers
	idem     *Idempotency
	store    offline.Store
	health   *HealthMonitor
	sampler  *Sampler
	log      logger.Logger
	metrics  metrics.Metrics
	adaptive bool

	mu         sync.Mutex
	flushScale float64
	now        func() time.Time
}

func NewCoordinator(
	retry *Retrier,
	breakers *Breakers,
	idem *Idempotency,
	store offline.Store,
	health *HealthMonitor,
	sampler *Sampler,
	log logger.Logger,
	m metrics.Metrics,
	adaptive bool,
) *Coordinator {
	return &Coordinator{
		retry:      retry,
		breakers:   breakers,
		idem:       idem,
		store:      store,
		health:     health,
		sampler:    sampler,
		log:        log.WithField("component", "coordinator"),
		metrics:    m,
		adaptive:   adaptive,
		flushScale: 1,
		now:        time.Now,
	}
}

// Submit runs op under the full pipeline. The returned bytes are the
// operation's settled result (shared across idempotent duplicates).
//
// Failure policy, per error kind:
//   - ServerTerminal: the payload is dropped with a debug log and the error
//     is returned to the caller.
//   - FromStore submissions: nothing is queued and the error is returned;
//     the sync manager keeps the item.
//   - everything else: the payload is queued at the submission's priority
//     and nil is returned; the offline store absorbs the failure. If the
//     store rejects the item, the error is returned instead.
func (c *Coordinator) Submit(ctx context.Context, sub Submission, op ResultOperation) ([]byte, error) {
	key := sub.IdempotencyKey
	if key == "" {
		key = Key(sub.Feature, sub.Payload)
	}

	result, err := c.idem.Execute(ctx, key, func(ctx context.Context) ([]byte, error) {
		var out []byte
		circuitErr := c.breakers.Get(sub.Feature).Call(ctx, func(ctx context.Context) error {
			return c.retry.Run(ctx, sub.Feature, sub.Idempotent, func(ctx context.Context) error {
				var opErr error
				out, opErr = op(ctx)
				return opErr
			})
		})
		return out, circuitErr
	})

	if c.adaptive {
		c.adapt()
	}

	if err == nil {
		return result, nil
	}
	return result, c.absorb(ctx, sub, err)
}

func (c *Coordinator) absorb(ctx context.Context, sub Submission, err error) error {
	kind := agenterror.KindOf(err)
	log := c.log.WithContext(ctx).WithFields(map[string]any{
		"feature": sub.Feature,
		"kind":    string(kind),
	})

	if kind == agenterror.KindServerTerminal {
		c.metrics.Incr("submission.dropped", []string{"feature:" + sub.Feature})
		log.Debug("Dropping payload after terminal server response")
		return err
	}

	if sub.FromStore {
		// The sync manager owns retry counters and removal for queued items.
		return err
	}

	item := &offline.Item{
		ID:        uid.NewUUID(),
		Kind:      string(sub.Kind),
		Priority:  sub.Priority,
		CreatedAt: c.now().UnixMilli(),
		Payload:   sub.Payload,
	}
	if putErr := c.store.Put(ctx, item); putErr != nil {
		log.WithField("error_detail", putErr.Error()).Warn("Failed to queue payload offline")
		return err
	}

	c.metrics.Incr("submission.queued", []string{"feature:" + sub.Feature})
	log.Debug("Queued payload for reconnect sync")
	return nil
}

// adapt damps sampling and stretches auto-flush intervals while the primary
// endpoint is poor, and restores both once it recovers.
func (c *Coordinator) adapt() {
	quality := c.health.Quality()

	c.mu.Lock()
	defer c.mu.Unlock()

	if quality == QualityPoor {
		c.sampler.SetDamping(0.5)
		c.flushScale = 2
	} else {
		c.sampler.SetDamping(1)
		c.flushScale = 1
	}
}

// FlushScale is consulted by capture buffers when scheduling auto-flushes.
func (c *Coordinator) FlushScale() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushScale
}

// CircuitSnapshots exposes breaker state for observability surfaces.
func (c *Coordinator) CircuitSnapshots() []Snapshot {
	return c.breakers.Snapshots()
}
