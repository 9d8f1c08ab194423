package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trimborder/types"
)

func testConfig(t *testing.T) types.Config {
	root := t.TempDir()
	return types.Config{
		MonitoringTime: 5 * time.Second,
		SourceDir:      filepath.Join(root, "source"),
		OutputDir:      filepath.Join(root, "output"),
		ArchiveDir:     filepath.Join(root, "archive"),
		BadDir:         filepath.Join(root, "bad"),
	}
}

func TestScanWaitsForFilesToSettle(t *testing.T) {
	cfg := testConfig(t)
	w, err := NewWatcher(cfg)
	require.NoError(t, err)

	path := filepath.Join(cfg.SourceDir, "job.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SourceDir, "notes.txt"), []byte("x"), 0o644))

	start := time.Now()
	ready, err := w.Scan(start)
	require.NoError(t, err)
	assert.Empty(t, ready, "new files wait")

	ready, err = w.Scan(start.Add(2 * time.Second))
	require.NoError(t, err)
	assert.Empty(t, ready)

	ready, err = w.Scan(start.Add(6 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, []string{path}, ready)

	ready, err = w.Scan(start.Add(12 * time.Second))
	require.NoError(t, err)
	assert.Empty(t, ready, "processing files are not handed out twice")

	w.Release(path)
	ready, err = w.Scan(start.Add(13 * time.Second))
	require.NoError(t, err)
	assert.Empty(t, ready)
}

func TestScanRestartsClockOnChange(t *testing.T) {
	cfg := testConfig(t)
	w, err := NewWatcher(cfg)
	require.NoError(t, err)

	path := filepath.Join(cfg.SourceDir, "grow.PDF")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))
	start := time.Now()
	_, err = w.Scan(start)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7 more"), 0o644))
	ready, err := w.Scan(start.Add(6 * time.Second))
	require.NoError(t, err)
	assert.Empty(t, ready)

	ready, err = w.Scan(start.Add(12 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, []string{path}, ready)
}

func TestMoveToArchive(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, CreateDirectories(cfg))
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	first := filepath.Join(cfg.SourceDir, "a.pdf")
	require.NoError(t, os.WriteFile(first, []byte("1"), 0o644))
	dst, err := MoveToArchive(cfg, first, false, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.ArchiveDir, "2024-05-01", "a.pdf"), dst)
	assert.NoFileExists(t, first)

	require.NoError(t, os.WriteFile(first, []byte("2"), 0o644))
	dst, err = MoveToArchive(cfg, first, false, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.ArchiveDir, "2024-05-01", "a_1.pdf"), dst)

	require.NoError(t, os.WriteFile(first, []byte("3"), 0o644))
	dst, err = MoveToArchive(cfg, first, true, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.BadDir, "2024-05-01", "a.pdf"), dst)
}
