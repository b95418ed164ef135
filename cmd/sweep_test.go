package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glefebvre/guidepost/internal/assets"
	"github.com/glefebvre/guidepost/internal/logger"
)

func TestSweepCache_ReleasesLock(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "stale.png")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))
	old := time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	deleted, err := sweepCache(dir, 14*24*time.Hour, false, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.NoFileExists(t, stale)

	storage, err := assets.NewDiskStorage(dir, 0)
	require.NoError(t, err)
	unlock, err := storage.Lock()
	require.NoError(t, err, "expected the lock to be free after a sweep")
	require.NoError(t, unlock())
}

func TestSweepCache_Locked(t *testing.T) {
	dir := t.TempDir()
	storage, err := assets.NewDiskStorage(dir, 0)
	require.NoError(t, err)
	unlock, err := storage.Lock()
	require.NoError(t, err)
	defer unlock()

	_, err = sweepCache(dir, time.Hour, false, logger.Discard())
	assert.True(t, errors.Is(err, assets.ErrLocked), "got %v", err)
}
