package resilience

import (
	"context"
	"time"

	"revi/agent-core/internal/infrastructure/config"
	"revi/agent-core/internal/infrastructure/logger"
	"revi/agent-core/internal/pkg/agenterror"

	"github.com/cenkalti/backoff/v5"
)

// Operation is one attemptable unit of work, usually an HTTP submission.
type Operation func(ctx context.Context) error

// Retrier executes operations under the retry policy: capped exponential
// backoff with jitter, error-kind classification and Retry-After lower
// bounds. Cancellation surfaces as the distinguished aborted failure.
type Retrier struct {
	cfg   config.RetryConfig
	log   logger.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetrier(cfg config.RetryConfig, log logger.Logger) *Retrier {
	return &Retrier{
		cfg:   cfg,
		log:   log.WithField("component", "retry"),
		sleep: sleepCtx,
	}
}

// Run attempts op up to MaxAttempts times. idempotent decides how
// unclassified errors are treated: retryable for idempotent operations,
// terminal otherwise.
func (r *Retrier) Run(ctx context.Context, name string, idempotent bool, op Operation) error {
	schedule := r.newSchedule()

	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return agenterror.NewAborted(ctx.Err())
		}

		attemptCtx := ctx
		cancel := func() {}
		if r.cfg.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.cfg.AttemptTimeout)
		}
		err := op(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		// A cancellation mid-attempt stops the chain immediately.
		if ctx.Err() != nil {
			return agenterror.NewAborted(ctx.Err())
		}
		if agenterror.KindOf(err) == agenterror.KindAborted {
			return err
		}
		if !agenterror.IsRetryable(err, idempotent) {
			return err
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		delay := schedule.NextBackOff()
		if delay == backoff.Stop {
			break
		}
		// Retry-After is a lower bound on the next delay, not a replacement.
		if ra, ok := agenterror.RetryAfterOf(err); ok && ra > delay {
			delay = ra
		}

		r.log.WithFields(map[string]any{
			"operation": name,
			"attempt":   attempt,
			"delay_ms":  delay.Milliseconds(),
		}).Debug("Retrying operation")

		if err := r.sleep(ctx, delay); err != nil {
			return agenterror.NewAborted(err)
		}
	}
	return lastErr
}

// newSchedule builds the delay sequence min(maxDelay, base*2^(n-1)) with
// uniform jitter in [1-j, 1+j]. Jitter 0 disables randomization.
func (r *Retrier) newSchedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.BaseDelay
	b.RandomizationFactor = r.cfg.Jitter
	b.Multiplier = 2
	b.MaxInterval = r.cfg.MaxDelay
	b.Reset()
	return b
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
