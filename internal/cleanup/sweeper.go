// Package cleanup removes temporary job artifacts. Immediate cleanup
// happens when the executor reaches a terminal state; the periodic sweep
// exists because immediate cleanup is not crash-proof: a worker killed
// mid-phase leaves orphaned directories only the sweep will ever find.
package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RemoveJobDir deletes one job's artifact directory. Used for immediate
// cleanup on terminal transitions and by the delete endpoint. Removing a
// directory that does not exist is a no-op.
func RemoveJobDir(dataDir, jobID string) error {
	if jobID == "" {
		return nil
	}
	return os.RemoveAll(filepath.Join(dataDir, jobID))
}

// Sweeper periodically deletes job directories older than MaxAge. The
// age threshold is the concurrency guard: it is configured far above any
// realistic job duration, so a directory old enough to sweep cannot
// belong to a running job. No locking is involved.
type Sweeper struct {
	dataDir  string
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper over dataDir
func NewSweeper(dataDir string, maxAge, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		dataDir:  dataDir,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps on a ticker until ctx is cancelled. One sweep runs
// immediately at startup to reclaim space left by a crashed process.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("Cleanup sweeper started",
		slog.Duration("max_age", s.maxAge),
		slog.Duration("interval", s.interval),
	)

	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Cleanup sweeper stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep deletes every job directory whose modification time is older
// than the age threshold, regardless of which job produced it
func (s *Sweeper) sweep() {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Cleanup sweep could not read data directory",
				slog.String("data_dir", s.dataDir),
				slog.Any("error", err),
			)
		}
		return
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.dataDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			s.logger.Warn("Cleanup sweep failed to remove directory",
				slog.String("path", path),
				slog.Any("error", err),
			)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("Cleanup sweep removed stale artifacts",
			slog.Int("directories", removed),
		)
	}
}

// SweepOnce runs a single sweep pass; exposed for tests and manual
// maintenance
func (s *Sweeper) SweepOnce() {
	s.sweep()
}
