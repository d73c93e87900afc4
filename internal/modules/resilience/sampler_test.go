package resilience

import (
	"testing"
	"time"

	"revi/agent-core/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
)

func testLimit() config.RateLimitConfig {
	return config.RateLimitConfig{Events: 100, Window: 10 * time.Second}
}

func TestSamplerCriticalAlwaysAdmitted(t *testing.T) {
	s := NewSampler(map[EventKind]float64{KindError: 0}, testLimit())
	s.rand = func() float64 { return 0.99 }

	for i := 0; i < 50; i++ {
		assert.True(t, s.Admit(KindError, true))
	}
}

func TestSamplerBernoulliDraw(t *testing.T) {
	s := NewSampler(map[EventKind]float64{KindSession: 0.5}, testLimit())

	s.rand = func() float64 { return 0.4 }
	assert.True(t, s.Admit(KindSession, false))

	s.rand = func() float64 { return 0.6 }
	assert.False(t, s.Admit(KindSession, false))
}

func TestSamplerRateLimitCapsBursts(t *testing.T) {
	s := NewSampler(map[EventKind]float64{KindError: 1}, testLimit())
	s.rand = func() float64 { return 0 }

	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }

	admitted := 0
	for i := 0; i < 150; i++ {
		if s.Admit(KindError, true) {
			admitted++
		}
	}
	assert.Equal(t, 100, admitted)

	// A full window refills the bucket.
	now = now.Add(10 * time.Second)
	assert.True(t, s.Admit(KindError, true))
}

func TestSamplerBucketsArePerKind(t *testing.T) {
	s := NewSampler(map[EventKind]float64{KindError: 1, KindSession: 1}, config.RateLimitConfig{Events: 1, Window: time.Hour})
	s.rand = func() float64 { return 0 }

	assert.True(t, s.Admit(KindError, false))
	assert.False(t, s.Admit(KindError, false))
	assert.True(t, s.Admit(KindSession, false))
}

func TestSamplerDamping(t *testing.T) {
	s := NewSampler(map[EventKind]float64{KindSession: 1}, testLimit())
	s.rand = func() float64 { return 0.6 }

	assert.True(t, s.Admit(KindSession, false))
	s.SetDamping(0.5)
	assert.False(t, s.Admit(KindSession, false))
	s.SetDamping(1)
	assert.True(t, s.Admit(KindSession, false))
}
