package capture

import (
	"regexp"
	"strings"

	"revi/agent-core/internal/infrastructure/config"
)

// devPorts are the localhost ports the agent's own dev ingestion stub
// listens on; requests to them are never monitored.
var devPorts = []string{"8787"}

// analyticsPathMarker is rejected on any host: the agent must never observe
// its own ingestion family of endpoints.
const analyticsPathMarker = "/api/analytics/"

// AdmissionFilter decides which outgoing requests the network capture layer
// may observe. Rules apply in order: self-loop guard, caller excludes,
// privacy deny list, privacy allow list, then admit.
type AdmissionFilter struct {
	apiBase string
	exclude []*regexp.Regexp
	deny    []*regexp.Regexp
	allow   []*regexp.Regexp
}

// NewAdmissionFilter compiles the configured URL rules. Invalid patterns are
// skipped: a broken exclude must not disable the self-loop guard.
func NewAdmissionFilter(apiBase string, agentCfg *config.AgentConfig, privacy *config.PrivacyConfig) *AdmissionFilter {
	return &AdmissionFilter{
		apiBase: strings.TrimRight(apiBase, "/"),
		exclude: compileAll(agentCfg.ExcludeUrls),
		deny:    compileAll(privacy.DenyUrls),
		allow:   compileAll(privacy.AllowUrls),
	}
}

// Admit reports whether a request to url may be monitored.
func (f *AdmissionFilter) Admit(url string) bool {
	// 1. Hard self-loop guard: the agent's own ingestion traffic.
	if f.isSelfLoop(url) {
		return false
	}

	// 2. Caller-supplied excludes.
	for _, re := range f.exclude {
		if re.MatchString(url) {
			return false
		}
	}

	// 3. Privacy deny list.
	for _, re := range f.deny {
		if re.MatchString(url) {
			return false
		}
	}

	// 4. Non-empty privacy allow list admits only members.
	if len(f.allow) > 0 {
		for _, re := range f.allow {
			if re.MatchString(url) {
				return true
			}
		}
		return false
	}

	// 5. Default admit.
	return true
}

func (f *AdmissionFilter) isSelfLoop(url string) bool {
	if f.apiBase != "" && strings.HasPrefix(url, f.apiBase) {
		return true
	}
	if strings.Contains(url, analyticsPathMarker) {
		return true
	}
	for _, port := range devPorts {
		if strings.Contains(url, "localhost:"+port) || strings.Contains(url, "127.0.0.1:"+port) {
			return true
		}
	}
	return false
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	return out
}
