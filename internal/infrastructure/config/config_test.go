package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"revi/agent-core/internal/infrastructure/validator"
	"revi/agent-core/internal/pkg/agenterror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1.0, cfg.Agent.SampleRate)
	assert.Equal(t, 1.0, cfg.Agent.SessionSampleRate)
	assert.Equal(t, 50, cfg.Agent.MaxBreadcrumbs)
	assert.Equal(t, 5, cfg.Resilience.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Resilience.Retry.MaxDelay)
	assert.Equal(t, 0.2, cfg.Resilience.Retry.Jitter)
	assert.Equal(t, 0.5, cfg.Resilience.Circuit.FailureRate)
	assert.Equal(t, 5, cfg.Resilience.Circuit.ConsecutiveFailures)
	assert.Equal(t, 30*time.Second, cfg.Resilience.Circuit.Cooldown)
	assert.Equal(t, 100, cfg.Resilience.RateLimit.Events)
	assert.Equal(t, 20, cfg.Resilience.Sync.BatchSize)
	assert.Equal(t, 3, cfg.Resilience.Sync.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.Resilience.Sync.MaxDuration)
	assert.Equal(t, 60*time.Second, cfg.Resilience.Idempotency.TTL)
	assert.Equal(t, 200, cfg.Resilience.Buffer.HighWaterMark)
	assert.Equal(t, int64(10<<20), cfg.Storage.MaxBytes)
	assert.Equal(t, "memory", cfg.Storage.Driver)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Agent.SampleRate = 0.25
	cfg.Resilience.Retry.MaxAttempts = 2
	cfg.ApplyDefaults()

	assert.Equal(t, 0.25, cfg.Agent.SampleRate)
	assert.Equal(t, 2, cfg.Resilience.Retry.MaxAttempts)
}

func TestValidateRequiresAPIKey(t *testing.T) {
	cfg := Default()
	v := validator.NewPlaygroundValidator()

	err := cfg.Validate(v)
	require.Error(t, err)
	assert.Equal(t, agenterror.KindConfig, agenterror.KindOf(err))

	cfg.Agent.ApiKey = "k"
	assert.NoError(t, cfg.Validate(v))
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Agent.ApiKey = "k"
	cfg.Agent.Environment = "weird"
	v := validator.NewPlaygroundValidator()

	err := cfg.Validate(v)
	require.Error(t, err)
	assert.Equal(t, agenterror.KindConfig, agenterror.KindOf(err))
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_REVI_KEY", "env-key")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
agent:
  api_key: ${TEST_REVI_KEY:fallback}
  api_url: ${MISSING_URL:http://localhost:8787}
  environment: staging
unknown_section:
  ignored: true
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Agent.ApiKey)
	assert.Equal(t, "http://localhost:8787", cfg.Agent.ApiUrl)
	assert.Equal(t, "staging", cfg.Agent.Environment)
	// Defaults kick in for everything the file omits.
	assert.Equal(t, 5, cfg.Resilience.Retry.MaxAttempts)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
