package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"trimborder/types"
)

type seen struct {
	at      time.Time
	size    int64
	modTime time.Time
}

// Watcher polls the source folder and hands out PDFs that have not changed
// for MonitoringTime.
type Watcher struct {
	cfg    types.Config
	logger *slog.Logger

	mu         sync.Mutex
	firstSeen  map[string]seen
	processing map[string]bool
}

func NewWatcher(cfg types.Config) (*Watcher, error) {
	if err := CreateDirectories(cfg); err != nil {
		return nil, err
	}
	return &Watcher{
		cfg:        cfg,
		logger:     slog.Default().With("component", "watcher"),
		firstSeen:  make(map[string]seen),
		processing: make(map[string]bool),
	}, nil
}

func (w *Watcher) Watch(ctx context.Context, fileChan chan<- string) {
	w.logger.Info("start monitoring folder", "dir", w.cfg.SourceDir)
	defer w.logger.Info("file watcher stopped")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ready, err := w.Scan(time.Now())
			if err != nil {
				w.logger.Error("read source directory", "err", err)
				continue
			}
			for _, path := range ready {
				select {
				case fileChan <- path:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// Scan records new files and returns those that stayed unchanged long
// enough. Returned files are marked as processing until Release.
func (w *Watcher) Scan(now time.Time) ([]string, error) {
	entries, err := os.ReadDir(w.cfg.SourceDir)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	current := make(map[string]bool)
	var ready []string
	for _, e := range entries {
		if e.IsDir() || !isPDF(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(w.cfg.SourceDir, e.Name())
		current[path] = true
		if w.processing[path] {
			continue
		}

		s, ok := w.firstSeen[path]
		if !ok || s.size != info.Size() || !s.modTime.Equal(info.ModTime()) {
			w.firstSeen[path] = seen{at: now, size: info.Size(), modTime: info.ModTime()}
			if !ok {
				w.logger.Info("new file detected", "file", path)
			}
			continue
		}
		if now.Sub(s.at) < w.cfg.MonitoringTime {
			continue
		}
		w.processing[path] = true
		ready = append(ready, path)
	}

	for path := range w.firstSeen {
		if !current[path] {
			delete(w.firstSeen, path)
			delete(w.processing, path)
		}
	}
	return ready, nil
}

// Release forgets path. A file released while still present is picked up
// again after it settles.
func (w *Watcher) Release(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.firstSeen, path)
	delete(w.processing, path)
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// MoveToArchive moves path into a dated folder under the archive directory,
// or under the bad directory when failed is set. Name clashes get a counter.
func MoveToArchive(cfg types.Config, path string, failed bool, now time.Time) (string, error) {
	root := cfg.ArchiveDir
	if failed {
		root = cfg.BadDir
	}
	destDir := filepath.Join(root, now.Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}

	destPath := filepath.Join(destDir, filepath.Base(path))
	ext := filepath.Ext(destPath)
	base := strings.TrimSuffix(filepath.Base(destPath), ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(destPath); os.IsNotExist(err) {
			break
		}
		destPath = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", base, counter, ext))
	}

	if err := os.Rename(path, destPath); err != nil {
		return "", fmt.Errorf("move to archive: %w", err)
	}
	return destPath, nil
}

func CreateDirectories(cfg types.Config) error {
	for _, dir := range []string{cfg.SourceDir, cfg.OutputDir, cfg.ArchiveDir, cfg.BadDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
