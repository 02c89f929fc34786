package cleanup

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRemoveJobDir(t *testing.T) {
	dataDir := t.TempDir()
	jobDir := filepath.Join(dataDir, "job-1")
	require.NoError(t, os.MkdirAll(jobDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(jobDir, "audio.wav"), []byte("x"), 0o644))

	require.NoError(t, RemoveJobDir(dataDir, "job-1"))
	assert.NoDirExists(t, jobDir)

	// Removing again is a no-op
	assert.NoError(t, RemoveJobDir(dataDir, "job-1"))
}

func TestRemoveJobDir_EmptyJobID(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "keep"), []byte("x"), 0o644))

	// An empty job id must never delete the data directory itself.
	require.NoError(t, RemoveJobDir(dataDir, ""))
	assert.DirExists(t, dataDir)
	assert.FileExists(t, filepath.Join(dataDir, "keep"))
}

func TestSweeper_RemovesOnlyStaleDirs(t *testing.T) {
	dataDir := t.TempDir()

	staleDir := filepath.Join(dataDir, "stale-job")
	freshDir := filepath.Join(dataDir, "fresh-job")
	require.NoError(t, os.MkdirAll(staleDir, 0o755))
	require.NoError(t, os.MkdirAll(freshDir, 0o755))

	// Plain files at the top level are left alone regardless of age
	looseFile := filepath.Join(dataDir, "notes.txt")
	require.NoError(t, os.WriteFile(looseFile, []byte("x"), 0o644))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(staleDir, old, old))
	require.NoError(t, os.Chtimes(looseFile, old, old))

	sweeper := NewSweeper(dataDir, 24*time.Hour, time.Hour, discardLogger())
	sweeper.SweepOnce()

	assert.NoDirExists(t, staleDir)
	assert.DirExists(t, freshDir)
	assert.FileExists(t, looseFile)
}

func TestSweeper_MissingDataDir(t *testing.T) {
	sweeper := NewSweeper(filepath.Join(t.TempDir(), "does-not-exist"), time.Hour, time.Hour, discardLogger())

	// Must not panic or create the directory
	sweeper.SweepOnce()
}
