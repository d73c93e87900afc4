package capture

import (
	"context"
	"sync"
	"time"

	"revi/agent-core/internal/infrastructure/config"
	"revi/agent-core/internal/modules/capture/entity"
)

// FlushScaler stretches the watchdog cadence when the pipeline reports poor
// connectivity. The resilience coordinator implements it.
type FlushScaler interface {
	FlushScale() float64
}

type fixedScale struct{}

func (fixedScale) FlushScale() float64 { return 1 }

// NetworkBuffer accumulates network events and flushes them either at a
// high-water mark or from an idle watchdog. During rapid activity small
// buffers are held back to maximize batch size.
type NetworkBuffer struct {
	cfg    config.BufferConfig
	sink   func(ctx context.Context, evs []*entity.NetworkEvent)
	scaler FlushScaler

	mu       sync.Mutex
	events   []*entity.NetworkEvent
	lastPush time.Time
	now      func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

func NewNetworkBuffer(cfg config.BufferConfig, scaler FlushScaler, sink func(ctx context.Context, evs []*entity.NetworkEvent)) *NetworkBuffer {
	if scaler == nil {
		scaler = fixedScale{}
	}
	return &NetworkBuffer{
		cfg:    cfg,
		sink:   sink,
		scaler: scaler,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
}

// Start launches the idle watchdog.
func (b *NetworkBuffer) Start(ctx context.Context) {
	go func() {
		for {
			tick := time.Duration(float64(b.cfg.WatchdogTick) * b.scaler.FlushScale())
			timer := time.NewTimer(tick)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-b.stop:
				timer.Stop()
				return
			case <-timer.C:
				b.watchdog(ctx)
			}
		}
	}()
}

// Stop halts the watchdog and flushes whatever is left.
func (b *NetworkBuffer) Stop(ctx context.Context) {
	b.stopOnce.Do(func() { close(b.stop) })
	b.Flush(ctx)
}

// Push appends an event, flushing when the high-water mark is reached.
// It never blocks on delivery: the flush hands the batch to the sink in the
// caller's goroutine but the sink only enqueues.
func (b *NetworkBuffer) Push(ctx context.Context, ev *entity.NetworkEvent) {
	var flush []*entity.NetworkEvent

	b.mu.Lock()
	b.events = append(b.events, ev)
	b.lastPush = b.now()
	if len(b.events) >= b.cfg.HighWaterMark {
		flush = b.events
		b.events = nil
	}
	b.mu.Unlock()

	if flush != nil {
		b.sink(ctx, flush)
	}
}

// watchdog flushes a non-empty buffer once the stream has gone idle. Small
// buffers are kept during rapid activity.
func (b *NetworkBuffer) watchdog(ctx context.Context) {
	var flush []*entity.NetworkEvent

	b.mu.Lock()
	if len(b.events) > 0 {
		idle := b.now().Sub(b.lastPush)
		rapid := idle < b.cfg.RapidWindow
		switch {
		case rapid && len(b.events) < b.cfg.MinRapidFlush:
			// Keep batching while the stream is hot.
		case idle >= b.cfg.IdleAfter:
			flush = b.events
			b.events = nil
		}
	}
	b.mu.Unlock()

	if flush != nil {
		b.sink(ctx, flush)
	}
}

// Flush drains the buffer unconditionally.
func (b *NetworkBuffer) Flush(ctx context.Context) {
	b.mu.Lock()
	flush := b.events
	b.events = nil
	b.mu.Unlock()

	if len(flush) > 0 {
		b.sink(ctx, flush)
	}
}

// Len reports the buffered event count.
func (b *NetworkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
