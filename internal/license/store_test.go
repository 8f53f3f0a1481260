package license

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoad(t *testing.T) {
	t.Run("missing file is not an error", func(t *testing.T) {
		store := NewStore(filepath.Join(t.TempDir(), "license.json"), nil)
		rec, err := store.Load()
		assert.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("corrupt file reports ErrCacheCorrupt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "license.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		store := NewStore(path, nil)
		rec, err := store.Load()
		assert.ErrorIs(t, err, ErrCacheCorrupt)
		assert.Nil(t, rec)
	})
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	priv, _ := newTestKeypair(t)
	original := cachedRecord(t, priv, validClaims(), time.Now().UTC())
	plan := "pro"
	devices := 3
	original.ServerPlan = &plan
	original.ServerMaxDevices = &devices

	store := NewStore(filepath.Join(t.TempDir(), "sub", "license.json"), nil)
	require.NoError(t, store.Save(original))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestStoreSaveFormat(t *testing.T) {
	priv, _ := newTestKeypair(t)
	rec := cachedRecord(t, priv, validClaims(), time.Now().UTC())

	path := filepath.Join(t.TempDir(), "license.json")
	store := NewStore(path, nil)
	require.NoError(t, store.Save(rec))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Indented JSON, readable for support sessions.
	assert.Contains(t, string(data), "\n  \"customer\"")
	assert.True(t, json.Valid(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStoreSaveOverwrites(t *testing.T) {
	priv, _ := newTestKeypair(t)
	store := NewStore(filepath.Join(t.TempDir(), "license.json"), nil)

	first := cachedRecord(t, priv, validClaims(), time.Now().UTC())
	first.Plan = "basic"
	require.NoError(t, store.Save(first))

	second := cachedRecord(t, priv, validClaims(), time.Now().UTC())
	second.Plan = "pro"
	require.NoError(t, store.Save(second))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "pro", loaded.Plan)
}

func TestStoreDelete(t *testing.T) {
	priv, _ := newTestKeypair(t)
	path := filepath.Join(t.TempDir(), "license.json")
	store := NewStore(path, nil)

	require.NoError(t, store.Save(cachedRecord(t, priv, validClaims(), time.Now().UTC())))
	require.NoError(t, store.Delete())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Deleting again is fine.
	assert.NoError(t, store.Delete())
}
