// Package agent is the public surface of the revi monitoring agent. A host
// application initializes one Monitor, wraps its HTTP transport, and calls
// the capture API; everything else happens behind the scenes.
//
// Every method on Monitor is safe to call regardless of how Init went: an
// invalid configuration produces a disabled monitor that logs once and turns
// every call into a no-op. Capture entry points never panic into the host.
package agent

import (
	"context"
	"net/http"
	"time"

	"revi/agent-core/internal/app"
	"revi/agent-core/internal/infrastructure/config"
	"revi/agent-core/internal/infrastructure/logger"
	"revi/agent-core/internal/modules/breadcrumb"
	"revi/agent-core/internal/modules/capture"
	"revi/agent-core/internal/modules/capture/entity"
	"revi/agent-core/internal/modules/replay"
)

// Re-exported data types so hosts never import internal packages.
type (
	Breadcrumb  = breadcrumb.Breadcrumb
	UserContext = entity.UserContext
	WebVitals   = entity.WebVitals
	Severity    = entity.Severity

	// Replay document model, fed by the host's DOM bridge.
	Document = replay.Document
	Node     = replay.Node
	Snapshot = replay.Snapshot
	Change   = replay.Change
)

// Severity levels.
const (
	LevelDebug    = entity.SeverityDebug
	LevelInfo     = entity.SeverityInfo
	LevelWarning  = entity.SeverityWarning
	LevelError    = entity.SeverityError
	LevelCritical = entity.SeverityCritical
)

// Breadcrumb categories.
const (
	CategoryNavigation = breadcrumb.CategoryNavigation
	CategoryUI         = breadcrumb.CategoryUI
	CategoryNetwork    = breadcrumb.CategoryNetwork
	CategoryConsole    = breadcrumb.CategoryConsole
	CategoryCustom     = breadcrumb.CategoryCustom
)

// Options is the init record. ApiKey is required; zero values fall back to
// documented defaults. Unknown concerns are configured via ConfigPath, a
// YAML file in the agent's config format.
type Options struct {
	ApiKey            string
	ApiUrl            string
	Environment       string
	Debug             bool
	SampleRate        float64
	SessionSampleRate float64
	MaxBreadcrumbs    int
	ExcludeUrls       []string

	Privacy struct {
		MaskInputs      bool
		MaskPasswords   bool
		MaskCreditCards bool
		AllowUrls       []string
		DenyUrls        []string
	}
	Performance struct {
		CaptureWebVitals        bool
		CaptureResourceTiming   bool
		CaptureNavigationTiming bool
	}
	Replay struct {
		Enabled       bool
		MaskAllInputs bool
		MaskAllText   bool
	}

	// StorageDir overrides where local state (device id, last-sync) lives.
	StorageDir string

	// ConfigPath optionally layers a full YAML config underneath the
	// programmatic options.
	ConfigPath string
}

// EventOptions carries per-capture overrides.
type EventOptions struct {
	Level Severity
	Tags  map[string]string
	Extra map[string]any
	URL   string
}

// Monitor is the process-lifetime agent handle.
type Monitor struct {
	app      *app.Agent
	log      logger.Logger
	disabled bool
}

// Init builds a Monitor from the options. It never fails loudly: a broken
// configuration yields a disabled monitor that has logged the reason once.
func Init(opts Options) *Monitor {
	cfg := optionsToConfig(opts)

	a, err := app.Bootstrap(cfg)
	if err != nil {
		fallback := logger.NewStdoutLogger(cfg, nil).WithField("component", "agent")
		fallback.WithField("error_detail", err.Error()).Error("Agent disabled: invalid configuration")
		return &Monitor{disabled: true, log: fallback}
	}

	return &Monitor{app: a, log: a.Log}
}

func optionsToConfig(opts Options) *config.Config {
	var cfg *config.Config
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err == nil {
			cfg = loaded
		}
	}
	if cfg == nil {
		cfg = config.Default()
	}

	if opts.ApiKey != "" {
		cfg.Agent.ApiKey = opts.ApiKey
	}
	if opts.ApiUrl != "" {
		cfg.Agent.ApiUrl = opts.ApiUrl
	}
	if opts.Environment != "" {
		cfg.Agent.Environment = opts.Environment
	}
	if opts.Debug {
		cfg.Agent.Debug = true
	}
	if opts.SampleRate > 0 {
		cfg.Agent.SampleRate = opts.SampleRate
	}
	if opts.SessionSampleRate > 0 {
		cfg.Agent.SessionSampleRate = opts.SessionSampleRate
	}
	if opts.MaxBreadcrumbs > 0 {
		cfg.Agent.MaxBreadcrumbs = opts.MaxBreadcrumbs
	}
	if len(opts.ExcludeUrls) > 0 {
		cfg.Agent.ExcludeUrls = opts.ExcludeUrls
	}

	cfg.Privacy.MaskInputs = opts.Privacy.MaskInputs
	cfg.Privacy.MaskPasswords = opts.Privacy.MaskPasswords
	cfg.Privacy.MaskCreditCards = opts.Privacy.MaskCreditCards
	if len(opts.Privacy.AllowUrls) > 0 {
		cfg.Privacy.AllowUrls = opts.Privacy.AllowUrls
	}
	if len(opts.Privacy.DenyUrls) > 0 {
		cfg.Privacy.DenyUrls = opts.Privacy.DenyUrls
	}

	cfg.Performance.CaptureWebVitals = opts.Performance.CaptureWebVitals
	cfg.Performance.CaptureResourceTiming = opts.Performance.CaptureResourceTiming
	cfg.Performance.CaptureNavigationTiming = opts.Performance.CaptureNavigationTiming

	cfg.Replay.Enabled = opts.Replay.Enabled
	cfg.Replay.MaskAllInputs = opts.Replay.MaskAllInputs
	cfg.Replay.MaskAllText = opts.Replay.MaskAllText

	if opts.StorageDir != "" {
		cfg.Storage.Dir = opts.StorageDir
	}

	cfg.ApplyDefaults()
	return cfg
}

// CaptureException records an error and returns its event id, empty when
// sampled out or disabled.
func (m *Monitor) CaptureException(err error, opts ...EventOptions) string {
	if m.disabled {
		return ""
	}
	o := firstOpt(opts)
	return m.app.Errors.CaptureException(m.app.Context(), err, capture.CaptureOptions{
		Level: o.Level,
		Tags:  o.Tags,
		Extra: o.Extra,
		URL:   o.URL,
	})
}

// CaptureMessage records a free-form message at the given level.
func (m *Monitor) CaptureMessage(message string, opts ...EventOptions) string {
	if m.disabled {
		return ""
	}
	o := firstOpt(opts)
	return m.app.Errors.CaptureMessage(m.app.Context(), message, capture.CaptureOptions{
		Level: o.Level,
		Tags:  o.Tags,
		Extra: o.Extra,
		URL:   o.URL,
	})
}

// CaptureUncaught forwards an error the host runtime could not handle (a
// global error hook or unhandled rejection). Captured at critical severity
// and high delivery priority.
func (m *Monitor) CaptureUncaught(message, stack, url string) string {
	if m.disabled {
		return ""
	}
	return m.app.Errors.CaptureUncaught(m.app.Context(), message, stack, url)
}

// RecordNavigationTiming ships one host navigation-timing record.
func (m *Monitor) RecordNavigationTiming(data map[string]any) {
	if m.disabled {
		return
	}
	m.app.Performance.RecordNavigationTiming(m.app.Context(), data)
}

// RecordResourceTiming ships one host resource-timing record.
func (m *Monitor) RecordResourceTiming(data map[string]any) {
	if m.disabled {
		return
	}
	m.app.Performance.RecordResourceTiming(m.app.Context(), data)
}

// Recover is a deferred panic hook: it captures the panic as a critical
// error and, when rethrow is set, re-panics for the host to handle.
func (m *Monitor) Recover(rethrow bool) {
	if m.disabled {
		return
	}
	m.app.Errors.Recover(m.app.Context(), rethrow)
}

// AddBreadcrumb appends a custom entry to the timeline.
func (m *Monitor) AddBreadcrumb(b Breadcrumb) {
	if m.disabled {
		return
	}
	if b.Timestamp == 0 {
		b.Timestamp = time.Now().UnixMilli()
	}
	if b.Category == "" {
		b.Category = CategoryCustom
	}
	m.app.Crumbs.Push(b)
}

// SetUserContext attaches user identity to subsequent events.
func (m *Monitor) SetUserContext(u UserContext) {
	if m.disabled {
		return
	}
	m.app.Session.SetUser(&u)
}

// Mark records a named performance instant.
func (m *Monitor) Mark(name string) {
	if m.disabled {
		return
	}
	m.app.Performance.Mark(name)
}

// Measure returns the elapsed milliseconds between two marks.
func (m *Monitor) Measure(name string, start, end string) float64 {
	if m.disabled {
		return 0
	}
	return m.app.Performance.Measure(name, start, end)
}

// RecordWebVitals merges host-observed vitals into the current set.
func (m *Monitor) RecordWebVitals(v WebVitals) {
	if m.disabled {
		return
	}
	m.app.Performance.RecordVitals(m.app.Context(), v)
}

// GetWebVitals returns the latest merged vitals.
func (m *Monitor) GetWebVitals() WebVitals {
	if m.disabled {
		return WebVitals{}
	}
	return m.app.Performance.Vitals()
}

// GetSessionID returns the active session identifier.
func (m *Monitor) GetSessionID() string {
	if m.disabled {
		return ""
	}
	return m.app.Session.ID()
}

// EndSession closes the current session and starts a fresh one.
func (m *Monitor) EndSession() {
	if m.disabled {
		return
	}
	m.app.Session.End(m.app.Context())
}

// CaptureConsole forwards one host console line into the timeline.
func (m *Monitor) CaptureConsole(level string, args ...any) {
	if m.disabled {
		return
	}
	m.app.Console.Capture(level, args...)
}

// WrapTransport layers network capture over an http.RoundTripper. Passing
// nil wraps http.DefaultTransport. Disabled monitors return the input
// unchanged.
func (m *Monitor) WrapTransport(rt http.RoundTripper) http.RoundTripper {
	if m.disabled {
		if rt == nil {
			return http.DefaultTransport
		}
		return rt
	}
	if rt == nil || rt == http.RoundTripper(m.app.Network) {
		return m.app.Network
	}
	return capture.NewTransport(
		rt, m.app.Filter, m.app.Tracer, m.app.Crumbs, m.app.Buffer, nil,
		m.app.Config.Privacy.MaskCreditCards,
	)
}

// HTTPClient returns an http.Client whose requests are monitored.
func (m *Monitor) HTTPClient() *http.Client {
	return &http.Client{Transport: m.WrapTransport(nil)}
}

// StartReplay snapshots the document and begins recording its mutations.
func (m *Monitor) StartReplay(doc Document) *Snapshot {
	if m.disabled {
		return nil
	}
	return m.app.Replay.Start(m.app.Context(), doc)
}

// ReplayRecorder exposes the active mutation recorder for host DOM bridges,
// nil before StartReplay or when replay is disabled.
func (m *Monitor) ReplayRecorder() *replay.Recorder {
	if m.disabled {
		return nil
	}
	return m.app.Replay.Recorder()
}

// SetOnline feeds host connectivity transitions; coming back online starts
// an offline-store drain.
func (m *Monitor) SetOnline(online bool) {
	if m.disabled {
		return
	}
	m.app.Sync.HandleOnline(m.app.Context(), online)
}

// SetVisible feeds host foreground/background transitions.
func (m *Monitor) SetVisible(visible bool) {
	if m.disabled {
		return
	}
	m.app.Sync.HandleVisible(m.app.Context(), visible)
}

// Flush pushes buffered events and the offline backlog out now. After a nil
// return the offline store holds no items older than the call.
func (m *Monitor) Flush(ctx context.Context) error {
	if m.disabled {
		return nil
	}
	return m.app.Flush(ctx)
}

// Destroy stops every observer and releases the monitor's resources.
func (m *Monitor) Destroy() {
	if m.disabled {
		return
	}
	m.app.Destroy()
	m.disabled = true
}

func firstOpt(opts []EventOptions) EventOptions {
	if len(opts) > 0 {
		return opts[0]
	}
	return EventOptions{}
}
