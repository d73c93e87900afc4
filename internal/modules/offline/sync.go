package offline

import (
	"context"
	"math"
	"sync"
	"time"

	"revi/agent-core/internal/infrastructure/config"
	"revi/agent-core/internal/infrastructure/ctxkey"
	"revi/agent-core/internal/infrastructure/logger"
	"revi/agent-core/internal/infrastructure/telemetry/metrics"
	"revi/agent-core/internal/pkg/uid"
)

// Status is the phase of a sync drain.
type Status string

const (
	StatusPreparing Status = "preparing"
	StatusSyncing   Status = "syncing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Progress is one emission of the sync progress stream.
type Progress struct {
	Status      Status `json:"status"`
	Total       int    `json:"total"`
	Synced      int    `json:"synced"`
	Failed      int    `json:"failed"`
	Bytes       int64  `json:"bytes"`
	ETAMillis   int64  `json:"eta_ms"`
	LastError   string `json:"last_error,omitempty"`
	SyncSession string `json:"sync_session"`
}

// SyncContext bundles the device and connectivity state captured at the
// start of a drain. It drives batch-size adaptation.
type SyncContext struct {
	SessionID       string
	DeviceID        string
	LastSync        int64
	OfflineDuration time.Duration
	NetworkQuality  string
	BatteryLevel    float64
	BatteryKnown    bool
	Background      bool
}

// Submitter delivers one batch of items of a single kind. The sync manager
// treats any returned error as a failed batch: items stay queued with bumped
// retry counts.
type Submitter interface {
	SubmitBatch(ctx context.Context, kind string, items []*Item) error
}

// Environment supplies the host signals consulted when sizing batches.
// Every field is optional.
type Environment struct {
	Quality    func() string
	Battery    func() (level float64, ok bool)
	Background func() bool
	SessionID  func() string
}

// Manager drains the offline store when connectivity returns.
type Manager struct {
	store   Store
	device  *Device
	submit  Submitter
	env     Environment
	log     logger.Logger
	metrics metrics.Metrics
	cfg     config.SyncConfig

	mu      sync.Mutex
	running bool
	online  bool
	now     func() time.Time
}

func NewManager(
	store Store,
	device *Device,
	submit Submitter,
	env Environment,
	cfg config.SyncConfig,
	log logger.Logger,
	m metrics.Metrics,
) *Manager {
	return &Manager{
		store:   store,
		device:  device,
		submit:  submit,
		env:     env,
		cfg:     cfg,
		log:     log.WithField("component", "sync"),
		metrics: m,
		now:     time.Now,
	}
}

// HandleOnline records a connectivity transition. Coming back online starts
// a drain.
func (m *Manager) HandleOnline(ctx context.Context, online bool) <-chan Progress {
	m.mu.Lock()
	was := m.online
	m.online = online
	m.mu.Unlock()

	if online && !was {
		return m.Start(ctx)
	}
	return nil
}

// HandleVisible starts a drain when the host becomes visible while online.
func (m *Manager) HandleVisible(ctx context.Context, visible bool) <-chan Progress {
	m.mu.Lock()
	online := m.online
	m.mu.Unlock()

	if visible && online {
		return m.Start(ctx)
	}
	return nil
}

// Start launches a drain and returns its progress stream. A second Start
// while a drain is running returns nil: drains never overlap.
func (m *Manager) Start(ctx context.Context) <-chan Progress {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.mu.Unlock()

	ch := make(chan Progress, 16)
	go func() {
		defer func() {
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			close(ch)
		}()
		m.run(ctx, ch)
	}()
	return ch
}

func (m *Manager) run(ctx context.Context, ch chan<- Progress) {
	syncSession := uid.NewUUID()
	ctx = ctxkey.SetSyncSession(ctx, syncSession)
	ctx, cancel := context.WithTimeout(ctx, m.cfg.MaxDuration)
	defer cancel()

	emit := func(p Progress) {
		p.SyncSession = syncSession
		select {
		case ch <- p:
		default:
		}
	}
	emit(Progress{Status: StatusPreparing})

	sctx := m.buildContext()
	log := m.log.WithContext(ctx).WithFields(map[string]any{
		"device_id":       sctx.DeviceID,
		"network_quality": sctx.NetworkQuality,
		"last_sync":       sctx.LastSync,
	})

	items, err := m.store.Since(ctx, sctx.LastSync)
	if err != nil {
		log.WithField("error_detail", err.Error()).Error("Failed to read offline store")
		emit(Progress{Status: StatusFailed, LastError: err.Error()})
		return
	}
	if len(items) == 0 {
		_ = m.device.SetLastSync(m.now().UnixMilli())
		emit(Progress{Status: StatusCompleted})
		return
	}

	batchSize := m.adaptBatchSize(sctx, items)
	batchesByKind := partition(items, batchSize)

	log.WithFields(map[string]any{
		"items":      len(items),
		"batch_size": batchSize,
		"kinds":      len(batchesByKind),
	}).Info("Starting offline sync")

	var pmu sync.Mutex
	var synced, failed int
	var bytes int64
	var lastErr string
	started := m.now()
	total := len(items)

	report := func() {
		pmu.Lock()
		defer pmu.Unlock()

		var eta int64
		if synced > 0 {
			perItem := float64(m.now().Sub(started).Milliseconds()) / float64(synced)
			eta = int64(perItem * float64(total-synced-failed))
		}
		emit(Progress{
			Status:    StatusSyncing,
			Total:     total,
			Synced:    synced,
			Failed:    failed,
			Bytes:     bytes,
			ETAMillis: eta,
			LastError: lastErr,
		})
	}

	// One worker per kind keeps batches of a kind strictly ordered while up
	// to Concurrency kinds drain in parallel.
	kinds := make(chan string, len(batchesByKind))
	for kind := range batchesByKind {
		kinds <- kind
	}
	close(kinds)

	var wg sync.WaitGroup
	for i := 0; i < m.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for kind := range kinds {
				for _, batch := range batchesByKind[kind] {
					if ctx.Err() != nil {
						return
					}

					err := m.submit.SubmitBatch(ctx, kind, batch)
					ids := itemIDs(batch)
					if err != nil {
						_ = m.store.BumpRetry(ctx, ids...)
						pmu.Lock()
						failed += len(batch)
						lastErr = err.Error()
						pmu.Unlock()
						m.metrics.Incr("sync.batch.failed", []string{"kind:" + kind})
					} else {
						_ = m.store.Remove(ctx, ids...)
						pmu.Lock()
						synced += len(batch)
						bytes += batchBytes(batch)
						pmu.Unlock()
						m.metrics.Incr("sync.batch.synced", []string{"kind:" + kind})
					}
					report()
				}
			}
		}()
	}
	wg.Wait()

	m.metrics.Timing("sync.duration", m.now().Sub(started), nil)

	if ctx.Err() != nil && synced+failed < total {
		log.Warn("Sync cancelled before draining the full backlog")
	}

	_ = m.device.SetLastSync(m.now().UnixMilli())

	final := Progress{Total: total, Synced: synced, Failed: failed, Bytes: bytes, LastError: lastErr}
	if failed == total && total > 0 {
		final.Status = StatusFailed
	} else {
		final.Status = StatusCompleted
	}
	emit(final)

	log.WithFields(map[string]any{
		"synced": synced,
		"failed": failed,
		"bytes":  bytes,
	}).Info("Offline sync finished")
}

func (m *Manager) buildContext() SyncContext {
	sctx := SyncContext{
		DeviceID: m.device.ID(),
		LastSync: m.device.LastSync(),
	}
	if sctx.LastSync > 0 {
		sctx.OfflineDuration = time.Duration(m.now().UnixMilli()-sctx.LastSync) * time.Millisecond
	}
	if m.env.Quality != nil {
		sctx.NetworkQuality = m.env.Quality()
	}
	if m.env.Battery != nil {
		sctx.BatteryLevel, sctx.BatteryKnown = m.env.Battery()
	}
	if m.env.Background != nil {
		sctx.Background = m.env.Background()
	}
	if m.env.SessionID != nil {
		sctx.SessionID = m.env.SessionID()
	}
	return sctx
}

// adaptBatchSize scales the configured batch size by connectivity, battery,
// foreground state and backlog age, clamped to a minimum of 3.
func (m *Manager) adaptBatchSize(sctx SyncContext, items []*Item) int {
	size := float64(m.cfg.BatchSize)

	switch sctx.NetworkQuality {
	case "poor":
		size *= 0.3
	case "good":
		size *= 0.8
	case "excellent":
		size *= 1.5
	}

	if sctx.BatteryKnown && sctx.BatteryLevel < 0.2 {
		size *= 0.5
	}
	if sctx.Background {
		size *= 0.6
	}

	if len(items) > 0 {
		oldest := items[0].CreatedAt
		for _, it := range items {
			if it.CreatedAt < oldest {
				oldest = it.CreatedAt
			}
		}
		if m.now().UnixMilli()-oldest > time.Hour.Milliseconds() {
			size *= 0.7
		}
	}

	return int(math.Max(3, math.Floor(size)))
}

// partition splits the priority-ordered item list into per-kind batch
// sequences, preserving order inside each kind.
func partition(items []*Item, batchSize int) map[string][][]*Item {
	byKind := make(map[string][]*Item)
	for _, it := range items {
		byKind[it.Kind] = append(byKind[it.Kind], it)
	}

	out := make(map[string][][]*Item, len(byKind))
	for kind, list := range byKind {
		for start := 0; start < len(list); start += batchSize {
			end := min(start+batchSize, len(list))
			out[kind] = append(out[kind], list[start:end])
		}
	}
	return out
}

func itemIDs(items []*Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func batchBytes(items []*Item) int64 {
	var n int64
	for _, it := range items {
		n += it.SizeBytes
	}
	return n
}
