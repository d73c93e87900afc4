package breadcrumb

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingEvictsOldestFirst(t *testing.T) {
	r := NewRing(3)
	for i := 1; i <= 5; i++ {
		r.Push(Breadcrumb{Message: fmt.Sprintf("m%d", i), Timestamp: int64(i)})
	}

	got := r.Snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, "m3", got[0].Message)
	assert.Equal(t, "m5", got[2].Message)
}

func TestRingSnapshotIsACopy(t *testing.T) {
	r := NewRing(5)
	r.Push(Breadcrumb{Message: "original"})

	snap := r.Snapshot()
	snap[0].Message = "mutated"

	assert.Equal(t, "original", r.Snapshot()[0].Message)
}

func TestRingDefaultCapacity(t *testing.T) {
	r := NewRing(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		r.Push(Breadcrumb{Timestamp: int64(i)})
	}
	assert.Equal(t, DefaultCapacity, r.Len())
}

func TestRingClear(t *testing.T) {
	r := NewRing(5)
	r.Push(Breadcrumb{Message: "x"})
	r.Clear()

	assert.Zero(t, r.Len())
	assert.Empty(t, r.Snapshot())
}
