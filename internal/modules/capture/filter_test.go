package capture

import (
	"testing"

	"revi/agent-core/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
)

func newFilter(agentCfg config.AgentConfig, privacy config.PrivacyConfig) *AdmissionFilter {
	return NewAdmissionFilter("https://api.example.test", &agentCfg, &privacy)
}

func TestFilterSelfLoopGuard(t *testing.T) {
	f := newFilter(config.AgentConfig{}, config.PrivacyConfig{})

	tests := []struct {
		name     string
		url      string
		admitted bool
	}{
		{"own ingestion endpoint", "https://api.example.test/api/capture/error", false},
		{"own base with path", "https://api.example.test/anything", false},
		{"analytics path on any host", "https://third.party/api/analytics/foo", false},
		{"localhost dev port", "http://localhost:8787/api/capture/error", false},
		{"loopback dev port", "http://127.0.0.1:8787/x", false},
		{"unrelated third party", "https://third.party/users", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.admitted, f.Admit(tt.url))
		})
	}
}

func TestFilterExcludeList(t *testing.T) {
	f := newFilter(config.AgentConfig{ExcludeUrls: []string{`\.well-known`, `internal\.corp`}}, config.PrivacyConfig{})

	assert.False(t, f.Admit("https://site.test/.well-known/probe"))
	assert.False(t, f.Admit("https://internal.corp/users"))
	assert.True(t, f.Admit("https://site.test/users"))
}

func TestFilterPrivacyDenyList(t *testing.T) {
	f := newFilter(config.AgentConfig{}, config.PrivacyConfig{DenyUrls: []string{`bank\.example`}})

	assert.False(t, f.Admit("https://bank.example/accounts"))
	assert.True(t, f.Admit("https://shop.example/cart"))
}

func TestFilterAllowListRestrictsWhenNonEmpty(t *testing.T) {
	f := newFilter(config.AgentConfig{}, config.PrivacyConfig{AllowUrls: []string{`shop\.example`}})

	assert.True(t, f.Admit("https://shop.example/cart"))
	assert.False(t, f.Admit("https://other.example/cart"))
}

func TestFilterSelfLoopBeatsAllowList(t *testing.T) {
	f := newFilter(config.AgentConfig{}, config.PrivacyConfig{AllowUrls: []string{`api\.example\.test`}})

	assert.False(t, f.Admit("https://api.example.test/api/capture/error"))
}

func TestFilterSkipsInvalidPatterns(t *testing.T) {
	f := newFilter(config.AgentConfig{ExcludeUrls: []string{`([`}}, config.PrivacyConfig{})

	// The broken exclude is ignored; the guard still works.
	assert.True(t, f.Admit("https://third.party/users"))
	assert.False(t, f.Admit("https://api.example.test/x"))
}
