package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheTTL(t *testing.T) {
	c := NewMemoryCache().(*memoryCache)
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	v, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	now = now.Add(61 * time.Second)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCacheReapsExpiredOnWrite(t *testing.T) {
	c := NewMemoryCache().(*memoryCache)
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "old", []byte("1"), time.Second))

	now = now.Add(time.Minute)
	require.NoError(t, c.Set(ctx, "new", []byte("2"), time.Minute))

	c.mu.Lock()
	_, stillThere := c.entries["old"]
	c.mu.Unlock()
	assert.False(t, stillThere)
}
