package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trimborder/jobs"
	"trimborder/loader/internal"
	"trimborder/pdfdoc"
	"trimborder/store"
	"trimborder/types"
)

const shutdownTimeout = 5 * time.Second

// Service is the hot folder: it watches the source directory, borders each
// settled PDF and archives the original.
type Service struct {
	logger  *slog.Logger
	cfg     types.Config
	spec    types.BorderSpec
	runner  *jobs.Runner
	watcher *internal.Watcher
}

func New(cfg types.Config, spec types.BorderSpec, st store.DBStorer) (*Service, error) {
	watcher, err := internal.NewWatcher(cfg)
	if err != nil {
		return nil, err
	}
	return &Service{
		logger:  slog.Default().With("component", "loader"),
		cfg:     cfg,
		spec:    spec,
		runner:  jobs.NewRunner(st),
		watcher: watcher,
	}, nil
}

// Run blocks until ctx is cancelled, then waits up to shutdownTimeout for
// the file in flight.
func (s *Service) Run(ctx context.Context) {
	fileChan := make(chan string, 10)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(fileChan)
		s.watcher.Watch(ctx, fileChan)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for path := range fileChan {
			if ctx.Err() != nil {
				s.watcher.Release(path)
				continue
			}
			s.Process(ctx, path)
			s.watcher.Release(path)
		}
	}()

	<-ctx.Done()
	s.logger.Info("shutting down loader")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("loader stopped")
	case <-time.After(shutdownTimeout):
		s.logger.Warn("timeout waiting for the loader to stop")
	}
}

// Process borders one file. The source goes to the archive when the job
// produced an output and to the bad directory otherwise. A cancelled job
// leaves the source in place for the next run.
func (s *Service) Process(ctx context.Context, path string) (*types.Job, error) {
	log := s.logger.With("file", path)
	log.Info("processing file")

	out := pdfdoc.OutputPath(path, s.cfg.OutputDir, s.cfg.Suffix, s.cfg.Timestamp, time.Now())
	if s.cfg.BackupOriginal {
		if dst, err := pdfdoc.BackupTo(path, s.cfg.OutputDir); err != nil {
			log.Warn("backup original", "err", err)
		} else {
			log.Info("original backed up", "backup", dst)
		}
	}

	job, err := s.runner.File(ctx, path, out, s.spec, jobs.OriginHotFolder)
	if job != nil && job.Status == types.JobCancelled {
		return job, err
	}

	dst, merr := internal.MoveToArchive(s.cfg, path, err != nil, time.Now())
	if merr != nil {
		log.Error("archive source", "err", merr)
	} else {
		log.Info("source archived", "archive", dst)
	}
	return job, err
}
