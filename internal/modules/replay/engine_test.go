package replay

import (
	"context"
	"sync"
	"testing"

	"revi/agent-core/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkRecorder struct {
	mu     sync.Mutex
	events []string
	data   []map[string]any
}

func (s *sinkRecorder) Emit(ctx context.Context, eventType string, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, eventType)
	s.data = append(s.data, data)
}

func TestEngineDisabledProducesNothing(t *testing.T) {
	sink := &sinkRecorder{}
	e := NewEngine(config.ReplayConfig{Enabled: false}, sink)

	snap := e.Start(context.Background(), testDoc(el("html", nil)))

	assert.Nil(t, snap)
	assert.Empty(t, sink.events)
}

func TestEngineEmitsSnapshotThenChangeBatches(t *testing.T) {
	sink := &sinkRecorder{}
	e := NewEngine(config.ReplayConfig{Enabled: true}, sink)

	body := el("body", nil)
	root := el("html", nil, body)
	snap := e.Start(context.Background(), testDoc(root))

	require.NotNil(t, snap)
	require.Equal(t, []string{"replay_snapshot"}, sink.events)

	rec := e.Recorder()
	require.NotNil(t, rec)

	for i := 0; i < changeBatchSize; i++ {
		rec.RecordAttribute(body, "data-i", "", "x")
	}

	require.Len(t, sink.events, 2)
	assert.Equal(t, "replay_changes", sink.events[1])

	changes, ok := sink.data[1]["changes"].([]Change)
	require.True(t, ok)
	assert.Len(t, changes, changeBatchSize)
}

func TestEngineFlushShipsPartialBatch(t *testing.T) {
	sink := &sinkRecorder{}
	e := NewEngine(config.ReplayConfig{Enabled: true}, sink)

	body := el("body", nil)
	e.Start(context.Background(), testDoc(el("html", nil, body)))
	e.Recorder().RecordAttribute(body, "data-i", "", "x")

	e.Flush(context.Background())

	require.Len(t, sink.events, 2)
	assert.Equal(t, "replay_changes", sink.events[1])
}

func TestEngineStopReleasesSubscription(t *testing.T) {
	sink := &sinkRecorder{}
	e := NewEngine(config.ReplayConfig{Enabled: true}, sink)

	body := el("body", nil)
	e.Start(context.Background(), testDoc(el("html", nil, body)))
	rec := e.Recorder()

	e.Stop(context.Background())
	assert.Nil(t, e.Recorder())

	// Recording after Stop reaches no sink.
	rec.RecordAttribute(body, "data-i", "", "x")
	assert.Len(t, sink.events, 1)
}
