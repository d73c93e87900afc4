package replay

import (
	"context"
	"sync"

	"revi/agent-core/internal/infrastructure/config"
)

// SessionSink receives replay payloads as session-scoped events.
type SessionSink interface {
	Emit(ctx context.Context, eventType string, data map[string]any)
}

// changeBatchSize bounds how many changes ride in one session event.
const changeBatchSize = 50

// Engine ties the serializer and recorder to the session event stream:
// an initial full snapshot followed by ordered change batches.
type Engine struct {
	cfg  config.ReplayConfig
	ser  *Serializer
	sink SessionSink

	mu      sync.Mutex
	rec     *Recorder
	sub     *Subscription
	pending []Change
}

func NewEngine(cfg config.ReplayConfig, sink SessionSink) *Engine {
	return &Engine{
		cfg:  cfg,
		ser:  NewSerializer(cfg.MaskAllInputs),
		sink: sink,
	}
}

// Serializer exposes the engine's identity-map owner for host bridges that
// serialize subtrees themselves.
func (e *Engine) Serializer() *Serializer { return e.ser }

// Recorder returns the active mutation recorder, nil before Start.
func (e *Engine) Recorder() *Recorder {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec
}

// Start takes the initial snapshot and begins observing mutations. It
// returns the snapshot so the host can verify what was captured.
func (e *Engine) Start(ctx context.Context, doc Document) *Snapshot {
	if !e.cfg.Enabled {
		return nil
	}

	snap := e.ser.Snapshot(doc)
	e.sink.Emit(ctx, "replay_snapshot", map[string]any{"snapshot": snap})

	rec := NewRecorder(e.ser, doc.Viewport)
	sub := rec.Subscribe(func(ch Change) {
		e.buffer(ctx, ch)
	})

	e.mu.Lock()
	e.rec = rec
	e.sub = sub
	e.mu.Unlock()

	return snap
}

func (e *Engine) buffer(ctx context.Context, ch Change) {
	var flush []Change

	e.mu.Lock()
	e.pending = append(e.pending, ch)
	if len(e.pending) >= changeBatchSize {
		flush = e.pending
		e.pending = nil
	}
	e.mu.Unlock()

	if flush != nil {
		e.sink.Emit(ctx, "replay_changes", map[string]any{"changes": flush})
	}
}

// Flush ships any buffered changes immediately.
func (e *Engine) Flush(ctx context.Context) {
	e.mu.Lock()
	flush := e.pending
	e.pending = nil
	e.mu.Unlock()

	if len(flush) > 0 {
		e.sink.Emit(ctx, "replay_changes", map[string]any{"changes": flush})
	}
}

// Stop releases the mutation subscription and flushes the tail.
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	sub := e.sub
	e.sub = nil
	e.rec = nil
	e.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	e.Flush(ctx)
}
