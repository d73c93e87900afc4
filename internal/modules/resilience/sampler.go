// Package resilience wires the delivery policies around every upload:
// sampling, retry with backoff, circuit breaking, idempotency and endpoint
// health tracking. The Coordinator composes them outside-in.
package resilience

import (
	"math/rand"
	"sync"
	"time"

	"revi/agent-core/internal/infrastructure/config"
)

// EventKind partitions sampling and rate limiting.
type EventKind string

const (
	KindError       EventKind = "error"
	KindSession     EventKind = "session"
	KindPerformance EventKind = "performance"
	KindNetwork     EventKind = "network"
)

// Sampler admits events per kind with a Bernoulli draw plus a token-bucket
// rate limiter. Critical events are always admitted; the rate limiter still
// caps bursts. The sampler holds no state besides the buckets and the
// damping factor.
type Sampler struct {
	mu      sync.Mutex
	rates   map[EventKind]float64
	damping float64
	buckets map[EventKind]*tokenBucket
	limit   config.RateLimitConfig
	rand    func() float64
	now     func() time.Time
}

func NewSampler(rates map[EventKind]float64, limit config.RateLimitConfig) *Sampler {
	copied := make(map[EventKind]float64, len(rates))
	for k, v := range rates {
		copied[k] = v
	}
	return &Sampler{
		rates:   copied,
		damping: 1,
		buckets: make(map[EventKind]*tokenBucket),
		limit:   limit,
		rand:    rand.Float64,
		now:     time.Now,
	}
}

// Admit decides whether an event of the given kind passes. critical forces
// admission past the probabilistic draw but not past the rate limiter.
func (s *Sampler) Admit(kind EventKind, critical bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.bucket(kind).take(s.now()) {
		return false
	}
	if critical {
		return true
	}

	rate, ok := s.rates[kind]
	if !ok {
		rate = 1
	}
	rate *= s.damping

	return s.rand() < rate
}

// SetDamping scales every rate by f in [0,1]. The coordinator applies this
// when endpoint health turns poor and restores it on recovery.
func (s *Sampler) SetDamping(f float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	s.damping = f
}

func (s *Sampler) bucket(kind EventKind) *tokenBucket {
	b, ok := s.buckets[kind]
	if !ok {
		b = &tokenBucket{
			capacity: s.limit.Events,
			window:   s.limit.Window,
			tokens:   float64(s.limit.Events),
			last:     s.now(),
		}
		s.buckets[kind] = b
	}
	return b
}

// tokenBucket refills capacity tokens per window.
type tokenBucket struct {
	capacity int
	window   time.Duration
	tokens   float64
	last     time.Time
}

func (b *tokenBucket) take(now time.Time) bool {
	if b.capacity <= 0 {
		return true
	}

	elapsed := now.Sub(b.last)
	if elapsed > 0 {
		refill := float64(b.capacity) * float64(elapsed) / float64(b.window)
		b.tokens = minF(float64(b.capacity), b.tokens+refill)
		b.last = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
