package server

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadStoreSaveAndGet(t *testing.T) {
	store, err := NewUploadStore(t.TempDir(), time.Minute)
	require.NoError(t, err)

	id, size, err := store.Save("demo.apk", strings.NewReader("fake apk"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)

	path, fileName, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "demo.apk", fileName)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fake apk", string(data))
}

func TestUploadStoreRejectsNonAPK(t *testing.T) {
	store, err := NewUploadStore(t.TempDir(), time.Minute)
	require.NoError(t, err)

	_, _, err = store.Save("evil.exe", strings.NewReader("nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".apk")
}

func TestUploadStoreStripsDirectories(t *testing.T) {
	store, err := NewUploadStore(t.TempDir(), time.Minute)
	require.NoError(t, err)

	id, _, err := store.Save("../../escape/demo.apk", strings.NewReader("x"))
	require.NoError(t, err)

	_, fileName, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "demo.apk", fileName)
}

func TestUploadStoreRemove(t *testing.T) {
	store, err := NewUploadStore(t.TempDir(), time.Minute)
	require.NoError(t, err)

	id, _, err := store.Save("demo.apk", strings.NewReader("x"))
	require.NoError(t, err)

	path, _, err := store.Get(id)
	require.NoError(t, err)

	store.Remove(id)

	_, _, err = store.Get(id)
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestUploadStorePurgesExpired(t *testing.T) {
	store, err := NewUploadStore(t.TempDir(), time.Nanosecond)
	require.NoError(t, err)

	oldID, _, err := store.Save("old.apk", strings.NewReader("x"))
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	// Saving triggers the lazy purge
	_, _, err = store.Save("new.apk", strings.NewReader("y"))
	require.NoError(t, err)

	_, _, err = store.Get(oldID)
	require.Error(t, err)
}
