package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKVPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	kv, err := NewFileKV(dir)
	require.NoError(t, err)
	require.NoError(t, kv.Set(KeyDeviceID, "device-1"))
	require.NoError(t, kv.Set(KeyLastSync, "12345"))

	reopened, err := NewFileKV(dir)
	require.NoError(t, err)

	v, ok := reopened.Get(KeyDeviceID)
	require.True(t, ok)
	assert.Equal(t, "device-1", v)

	v, ok = reopened.Get(KeyLastSync)
	require.True(t, ok)
	assert.Equal(t, "12345", v)
}

func TestFileKVDelete(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, kv.Set("k", "v"))
	require.NoError(t, kv.Delete("k"))

	_, ok := kv.Get("k")
	assert.False(t, ok)
}

func TestMemKV(t *testing.T) {
	kv := NewMemKV()

	_, ok := kv.Get("missing")
	assert.False(t, ok)

	require.NoError(t, kv.Set("k", "v"))
	v, ok := kv.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}
