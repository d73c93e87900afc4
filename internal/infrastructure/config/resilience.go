package config

import "time"

// ResilienceConfig tunes the delivery pipeline: retry schedule, circuit
// breaker thresholds, health probing, sampler rate limits and the reconnect
// sync drain.
type ResilienceConfig struct {
	Retry       RetryConfig       `mapstructure:"retry"`
	Circuit     CircuitConfig     `mapstructure:"circuit"`
	Health      HealthConfig      `mapstructure:"health"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Sync        SyncConfig        `mapstructure:"sync"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Buffer      BufferConfig      `mapstructure:"buffer"`
}

type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"gte=1"`
	BaseDelay      time.Duration `mapstructure:"base_delay"`
	MaxDelay       time.Duration `mapstructure:"max_delay"`
	Jitter         float64       `mapstructure:"jitter" validate:"gte=0,lte=1"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

type CircuitConfig struct {
	FailureRate         float64       `mapstructure:"failure_rate" validate:"gt=0,lte=1"`
	MinCalls            int           `mapstructure:"min_calls"`
	ConsecutiveFailures int           `mapstructure:"consecutive_failures"`
	WindowSize          int           `mapstructure:"window_size"`
	WindowDuration      time.Duration `mapstructure:"window_duration"`
	Cooldown            time.Duration `mapstructure:"cooldown"`
	MaxCooldown         time.Duration `mapstructure:"max_cooldown"`
	HalfOpenProbes      int           `mapstructure:"half_open_probes"`
	SuccessThreshold    int           `mapstructure:"success_threshold"`
}

type HealthConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	Regions      []string      `mapstructure:"regions"`
}

type RateLimitConfig struct {
	Events int           `mapstructure:"events"`
	Window time.Duration `mapstructure:"window"`
}

type SyncConfig struct {
	BatchSize   int           `mapstructure:"batch_size" validate:"gte=1"`
	Concurrency int           `mapstructure:"concurrency" validate:"gte=1"`
	MaxDuration time.Duration `mapstructure:"max_duration"`
}

type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type BufferConfig struct {
	HighWaterMark int           `mapstructure:"high_water_mark"`
	WatchdogTick  time.Duration `mapstructure:"watchdog_tick"`
	IdleAfter     time.Duration `mapstructure:"idle_after"`
	RapidWindow   time.Duration `mapstructure:"rapid_window"`
	MinRapidFlush int           `mapstructure:"min_rapid_flush"`
}
