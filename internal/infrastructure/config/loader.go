// Package config handles agent configuration loading, environment expansion,
// defaulting, and validation of the init record.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads the agent configuration from the provided YAML path.
// It expands ${VAR} and ${VAR:default} references against the environment,
// unmarshals into Config and applies defaults for every omitted knob.
// Unknown fields are ignored.
//
// Example:
//
//	cfg, err := config.Load("config/config.yaml")
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	content, err := processingFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading agent config: %w", err)
	}

	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("error parsing agent config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode agent config into struct: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a Config carrying every documented default and no API key.
// Library callers overlay their init options on top of it.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every zero-valued knob with its documented default.
// Explicit zero values that are meaningful (booleans, sample rates of 0 are
// indistinguishable from unset) follow the teacher-repo convention: rates
// default to 1.0 only when sample_rate, session_sample_rate and
// max_breadcrumbs are all unset.
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "revi-agent"
	}
	if c.App.Env == "" {
		c.App.Env = c.Agent.Environment
	}

	if c.Agent.ApiUrl == "" {
		c.Agent.ApiUrl = "https://api.revi.dev"
	}
	if c.Agent.Environment == "" {
		c.Agent.Environment = "production"
	}
	if c.Agent.SampleRate == 0 && c.Agent.SessionSampleRate == 0 && c.Agent.MaxBreadcrumbs == 0 {
		c.Agent.SampleRate = 1.0
		c.Agent.SessionSampleRate = 1.0
	}
	if c.Agent.MaxBreadcrumbs == 0 {
		c.Agent.MaxBreadcrumbs = 50
	}

	r := &c.Resilience
	if r.Retry.MaxAttempts == 0 {
		r.Retry.MaxAttempts = 5
	}
	if r.Retry.BaseDelay == 0 {
		r.Retry.BaseDelay = time.Second
	}
	if r.Retry.MaxDelay == 0 {
		r.Retry.MaxDelay = 30 * time.Second
	}
	if r.Retry.Jitter == 0 {
		r.Retry.Jitter = 0.2
	}
	if r.Retry.AttemptTimeout == 0 {
		r.Retry.AttemptTimeout = 30 * time.Second
	}

	if r.Circuit.FailureRate == 0 {
		r.Circuit.FailureRate = 0.5
	}
	if r.Circuit.MinCalls == 0 {
		r.Circuit.MinCalls = 10
	}
	if r.Circuit.ConsecutiveFailures == 0 {
		r.Circuit.ConsecutiveFailures = 5
	}
	if r.Circuit.WindowSize == 0 {
		r.Circuit.WindowSize = 20
	}
	if r.Circuit.WindowDuration == 0 {
		r.Circuit.WindowDuration = 10 * time.Second
	}
	if r.Circuit.Cooldown == 0 {
		r.Circuit.Cooldown = 30 * time.Second
	}
	if r.Circuit.MaxCooldown == 0 {
		r.Circuit.MaxCooldown = 5 * time.Minute
	}
	if r.Circuit.HalfOpenProbes == 0 {
		r.Circuit.HalfOpenProbes = 2
	}
	if r.Circuit.SuccessThreshold == 0 {
		r.Circuit.SuccessThreshold = 2
	}

	if r.Health.Interval == 0 {
		r.Health.Interval = 30 * time.Second
	}
	if r.Health.ProbeTimeout == 0 {
		r.Health.ProbeTimeout = 10 * time.Second
	}

	if r.RateLimit.Events == 0 {
		r.RateLimit.Events = 100
	}
	if r.RateLimit.Window == 0 {
		r.RateLimit.Window = 10 * time.Second
	}

	if r.Sync.BatchSize == 0 {
		r.Sync.BatchSize = 20
	}
	if r.Sync.Concurrency == 0 {
		r.Sync.Concurrency = 3
	}
	if r.Sync.MaxDuration == 0 {
		r.Sync.MaxDuration = 5 * time.Minute
	}

	if r.Idempotency.TTL == 0 {
		r.Idempotency.TTL = 60 * time.Second
	}

	if r.Buffer.HighWaterMark == 0 {
		r.Buffer.HighWaterMark = 200
	}
	if r.Buffer.WatchdogTick == 0 {
		r.Buffer.WatchdogTick = 3 * time.Second
	}
	if r.Buffer.IdleAfter == 0 {
		r.Buffer.IdleAfter = 5 * time.Second
	}
	if r.Buffer.RapidWindow == 0 {
		r.Buffer.RapidWindow = 2 * time.Second
	}
	if r.Buffer.MinRapidFlush == 0 {
		r.Buffer.MinRapidFlush = 10
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.MaxBytes == 0 {
		c.Storage.MaxBytes = 10 << 20
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = ".revi"
	}

	if c.Log.Level == 0 {
		c.Log.Level = 4
	}
}

func processingFile(path string) (string, error) {
	actualPath := findActualPath(path)

	content, err := os.ReadFile(actualPath)
	if err != nil {
		return "", err
	}

	return os.Expand(string(content), func(s string) string {
		parts := strings.SplitN(s, ":", 2)
		val := os.Getenv(parts[0])
		if val == "" && len(parts) > 1 {
			return parts[1]
		}
		return val
	}), nil
}

func findActualPath(configPath string) string {
	finalPath := configPath
	if _, err := os.Stat(finalPath); os.IsNotExist(err) {
		climbPath := fmt.Sprintf("../../%s", configPath)
		if _, err := os.Stat(climbPath); err == nil {
			return climbPath
		}
		parts := strings.Split(configPath, "/")
		flatPath := parts[len(parts)-1]
		if _, err := os.Stat(flatPath); err == nil {
			return flatPath
		}
	}
	return finalPath
}
