// Package app wires the agent's infrastructure and modules into one
// explicitly constructed object with init/destroy lifecycle. No implicit
// globals: tests construct and tear down cleanly.
package app

import (
	"context"
	"time"

	"revi/agent-core/internal/infrastructure/cache"
	"revi/agent-core/internal/infrastructure/config"
	"revi/agent-core/internal/infrastructure/logger"
	"revi/agent-core/internal/infrastructure/storage"
	"revi/agent-core/internal/infrastructure/telemetry/metrics"
	"revi/agent-core/internal/infrastructure/telemetry/tracer"
	"revi/agent-core/internal/infrastructure/validator"
	"revi/agent-core/internal/modules/breadcrumb"
	"revi/agent-core/internal/modules/capture"
	"revi/agent-core/internal/modules/fingerprint"
	"revi/agent-core/internal/modules/offline"
	"revi/agent-core/internal/modules/replay"
	"revi/agent-core/internal/modules/resilience"
	"revi/agent-core/internal/modules/transport"
	"revi/agent-core/internal/pkg/agenterror"
)

// Agent is the fully wired monitor. Build it with Bootstrap; stop it with
// Destroy.
type Agent struct {
	Config  *config.Config
	Log     logger.Logger
	Tracer  tracer.Tracer
	Metrics metrics.Metrics

	Crumbs      *breadcrumb.Ring
	Session     *capture.Session
	Errors      *capture.ErrorCapture
	Console     *capture.Console
	Performance *capture.Performance
	Network     *capture.Transport
	Buffer      *capture.NetworkBuffer
	Filter      *capture.AdmissionFilter
	Replay      *replay.Engine

	Store       offline.Store
	Device      *offline.Device
	Sync        *offline.Manager
	Coordinator *resilience.Coordinator
	Health      *resilience.HealthMonitor
	Sampler     *resilience.Sampler
	Pipeline    *Pipeline
	Client      *transport.Client

	ctx     context.Context
	cancel  context.CancelFunc
	idemCch cache.Cache
}

// Bootstrap validates the configuration and assembles the agent. A config
// failure returns a ConfigError; callers turn the agent into a no-op then.
func Bootstrap(cfg *config.Config) (*Agent, error) {
	cfg.ApplyDefaults()

	val := validator.NewPlaygroundValidator()
	if err := cfg.Validate(val); err != nil {
		return nil, err
	}

	trc, err := tracer.New(&cfg.Telemetry, cfg.Agent.Environment)
	if err != nil {
		return nil, agenterror.NewConfig(agenterror.CodeInvalidConfig, "failed to initialize tracer", err)
	}

	m, err := metrics.New(&cfg.Telemetry, cfg.Agent.Environment)
	if err != nil {
		return nil, agenterror.NewConfig(agenterror.CodeInvalidConfig, "failed to initialize metrics", err)
	}

	log := logger.New(cfg, trc).WithFields(map[string]any{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
		"env":     cfg.Agent.Environment,
	})

	ctx, cancel := context.WithCancel(context.Background())

	a := &Agent{
		Config:  cfg,
		Log:     log,
		Tracer:  trc,
		Metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}

	a.setupStorage()
	a.setupResilience()
	a.setupCapture()
	a.setupSync()

	log.WithField("component", "app").Info("Agent initialized")
	return a, nil
}

// Context returns the agent-lifetime context used by background work.
func (a *Agent) Context() context.Context { return a.ctx }

func (a *Agent) setupStorage() {
	cfg := a.Config

	kv, err := storage.NewFileKV(cfg.Storage.Dir)
	if err != nil {
		a.Log.WithField("error_detail", err.Error()).Warn("Local state dir unavailable, device identity is process-scoped")
		kv = storage.NewMemKV()
	}
	a.Device = offline.NewDevice(kv)

	switch cfg.Storage.Driver {
	case "postgres":
		db, err := storage.NewDatabase(&cfg.Storage.Database, a.Log)
		if err != nil {
			a.Log.WithField("error_detail", err.Error()).Warn("Persistent store unavailable, falling back to in-memory queue")
			a.Store = offline.NewMemoryStore(cfg.Storage.MaxBytes)
		} else {
			a.Store = offline.NewGormStore(db, cfg.Storage.MaxBytes, a.Log)
		}
	default:
		a.Store = offline.NewMemoryStore(cfg.Storage.MaxBytes)
	}
}

func (a *Agent) setupResilience() {
	cfg := a.Config
	res := &cfg.Resilience

	a.Sampler = resilience.NewSampler(map[resilience.EventKind]float64{
		resilience.KindError:       cfg.Agent.SampleRate,
		resilience.KindSession:     cfg.Agent.SessionSampleRate,
		resilience.KindPerformance: cfg.Agent.SampleRate,
		resilience.KindNetwork:     cfg.Agent.SampleRate,
	}, res.RateLimit)

	if cfg.Storage.Redis.Enabled {
		a.idemCch = cache.NewRedisCache(&cfg.Storage.Redis, a.Log)
	} else {
		a.idemCch = cache.NewMemoryCache()
	}

	retrier := resilience.NewRetrier(res.Retry, a.Log)
	breakers := resilience.NewBreakers(res.Circuit, a.Log, a.Metrics)
	idem := resilience.NewIdempotency(a.idemCch, res.Idempotency.TTL)

	endpoints := append([]string{cfg.Agent.ApiUrl}, res.Health.Regions...)
	a.Health = resilience.NewHealthMonitor(endpoints, res.Health, a.Log, a.Metrics)
	a.Health.Start(a.ctx)

	a.Coordinator = resilience.NewCoordinator(
		retrier, breakers, idem, a.Store, a.Health, a.Sampler, a.Log, a.Metrics, true,
	)

	a.Client = transport.NewClient(cfg.Agent.ApiUrl, cfg.Agent.ApiKey, a.Log, a.Metrics)
	a.Pipeline = NewPipeline(a.ctx, a.Coordinator, a.Client, a.Log)
}

func (a *Agent) setupCapture() {
	cfg := a.Config

	a.Crumbs = breadcrumb.NewRing(cfg.Agent.MaxBreadcrumbs)
	a.Session = capture.NewSession(a.Pipeline)
	a.Errors = capture.NewErrorCapture(
		fingerprint.New(), a.Crumbs, a.Sampler, a.Session, a.Tracer, a.Pipeline, a.Log, a.Metrics,
	)
	a.Console = capture.NewConsole(a.Crumbs, a.Errors)
	a.Performance = capture.NewPerformance(cfg.Performance, a.Sampler, a.Session, a.Pipeline)

	a.Filter = capture.NewAdmissionFilter(cfg.Agent.ApiUrl, &cfg.Agent, &cfg.Privacy)
	a.Buffer = capture.NewNetworkBuffer(cfg.Resilience.Buffer, a.Coordinator, a.Pipeline.DispatchNetwork)
	a.Buffer.Start(a.ctx)
	a.Network = capture.NewTransport(
		nil, a.Filter, a.Tracer, a.Crumbs, a.Buffer, nil, cfg.Privacy.MaskCreditCards,
	)

	a.Replay = replay.NewEngine(cfg.Replay, a.Session)
}

func (a *Agent) setupSync() {
	a.Sync = offline.NewManager(
		a.Store,
		a.Device,
		a.Pipeline,
		offline.Environment{
			Quality:   func() string { return string(a.Health.Quality()) },
			SessionID: a.Session.ID,
		},
		a.Config.Resilience.Sync,
		a.Log,
		a.Metrics,
	)
}

// Flush drains the capture buffers and synchronously pushes the offline
// store through one drain cycle. It returns an error while the store still
// holds items created before the call.
func (a *Agent) Flush(ctx context.Context) error {
	start := time.Now().UnixMilli()
	a.Buffer.Flush(ctx)
	a.Replay.Flush(ctx)

	if ch := a.Sync.Start(ctx); ch != nil {
		var last offline.Progress
		for p := range ch {
			last = p
		}
		if last.Status == offline.StatusFailed {
			return agenterror.NewTransport(agenterror.CodeTransport, "flush failed: "+last.LastError)
		}
	}

	items, err := a.Store.All(ctx)
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.CreatedAt <= start {
			return agenterror.NewTransport(agenterror.CodeTransport, "flush incomplete: older items remain queued")
		}
	}
	return nil
}

// Destroy stops observers, flushes what it can within a short grace period
// and releases every resource.
func (a *Agent) Destroy() {
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.Buffer.Stop(flushCtx)
	a.Replay.Stop(flushCtx)
	a.Health.Stop()
	_ = a.Flush(flushCtx)

	a.cancel()

	if err := a.Store.Close(); err != nil {
		a.Log.WithFields(map[string]any{
			"component":    "offline_store",
			"error_detail": err.Error(),
		}).Error("Failed to close offline store")
	}
	_ = a.idemCch.Close()
	_ = a.Tracer.Close()
	_ = a.Metrics.Close()

	a.Log.WithField("component", "app").Info("Agent destroyed")
}
