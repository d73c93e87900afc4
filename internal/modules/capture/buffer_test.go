package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	"revi/agent-core/internal/infrastructure/config"
	"revi/agent-core/internal/modules/capture/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkRecorder struct {
	mu      sync.Mutex
	batches [][]*entity.NetworkEvent
}

func (s *sinkRecorder) sink(ctx context.Context, evs []*entity.NetworkEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, evs)
}

func (s *sinkRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func bufferConfig() config.BufferConfig {
	return config.BufferConfig{
		HighWaterMark: 200,
		WatchdogTick:  3 * time.Second,
		IdleAfter:     5 * time.Second,
		RapidWindow:   2 * time.Second,
		MinRapidFlush: 10,
	}
}

func TestBufferFlushesAtHighWaterMark(t *testing.T) {
	rec := &sinkRecorder{}
	b := NewNetworkBuffer(bufferConfig(), nil, rec.sink)

	for i := 0; i < 200; i++ {
		b.Push(context.Background(), &entity.NetworkEvent{URL: "u"})
	}

	require.Equal(t, 1, rec.count())
	assert.Len(t, rec.batches[0], 200)
	assert.Zero(t, b.Len())
}

func TestBufferWatchdogFlushesIdleBuffer(t *testing.T) {
	rec := &sinkRecorder{}
	b := NewNetworkBuffer(bufferConfig(), nil, rec.sink)

	b.Push(context.Background(), &entity.NetworkEvent{URL: "u"})

	// Simulate the last push happening long ago.
	b.mu.Lock()
	b.lastPush = time.Now().Add(-10 * time.Second)
	b.mu.Unlock()

	b.watchdog(context.Background())
	assert.Equal(t, 1, rec.count())
}

func TestBufferHoldsSmallBuffersDuringRapidActivity(t *testing.T) {
	rec := &sinkRecorder{}
	b := NewNetworkBuffer(bufferConfig(), nil, rec.sink)

	for i := 0; i < 5; i++ {
		b.Push(context.Background(), &entity.NetworkEvent{URL: "u"})
	}

	// The stream is hot and the buffer is small: no flush.
	b.watchdog(context.Background())
	assert.Zero(t, rec.count())
	assert.Equal(t, 5, b.Len())
}

func TestBufferExplicitFlush(t *testing.T) {
	rec := &sinkRecorder{}
	b := NewNetworkBuffer(bufferConfig(), nil, rec.sink)

	b.Push(context.Background(), &entity.NetworkEvent{URL: "u"})
	b.Flush(context.Background())

	require.Equal(t, 1, rec.count())
	assert.Zero(t, b.Len())

	// Flushing an empty buffer does nothing.
	b.Flush(context.Background())
	assert.Equal(t, 1, rec.count())
}
