// Package scheduler runs periodic maintenance for the API server.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/runnerr0/histlens/internal/logger"
)

// Pruner removes archived artifacts processed before a cutoff.
type Pruner interface {
	PruneExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

// Retention applies the archive retention period on an interval and sweeps
// stale staged uploads.
type Retention struct {
	archive     Pruner // nil skips the archive
	uploadDir   string // empty skips the sweep
	keepUploads bool
	logger      logger.Logger
	interval    time.Duration
	maxAge      time.Duration
	now         func() time.Time
	stopCh      chan struct{}
}

// NewRetention creates a retention job. maxAge zero disables pruning.
func NewRetention(
	archive Pruner,
	uploadDir string,
	keepUploads bool,
	log logger.Logger,
	interval time.Duration,
	maxAge time.Duration,
) *Retention {
	return &Retention{
		archive:     archive,
		uploadDir:   uploadDir,
		keepUploads: keepUploads,
		logger:      log,
		interval:    interval,
		maxAge:      maxAge,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}
}

// Start runs one pass immediately, then one per interval until Stop or ctx
// is done.
func (r *Retention) Start(ctx context.Context) error {
	if r.interval <= 0 {
		return fmt.Errorf("retention interval must be positive, got %s", r.interval)
	}

	if _, err := r.Collect(ctx); err != nil {
		r.logger.Warn("initial retention pass failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := r.Collect(ctx); err != nil {
					r.logger.Error("retention pass failed",
						logger.Error(err))
				}
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the job.
func (r *Retention) Stop() {
	close(r.stopCh)
}

// Result counts what one pass removed.
type Result struct {
	Artifacts int64
	Uploads   int
}

// Collect prunes archived artifacts and staged uploads older than maxAge.
func (r *Retention) Collect(ctx context.Context) (Result, error) {
	var res Result
	if r.maxAge <= 0 {
		return res, nil
	}
	cutoff := r.now().Add(-r.maxAge)

	if r.archive != nil {
		n, err := r.archive.PruneExpired(ctx, cutoff)
		if err != nil {
			return res, fmt.Errorf("prune archive: %w", err)
		}
		res.Artifacts = n
	}

	if r.uploadDir != "" && !r.keepUploads {
		res.Uploads = r.sweepUploads(cutoff)
	}

	if res.Artifacts > 0 || res.Uploads > 0 {
		r.logger.Info("retention pass completed",
			logger.Int64("artifacts_pruned", res.Artifacts),
			logger.Int("uploads_removed", res.Uploads),
			logger.Duration("max_age", r.maxAge))
	} else {
		r.logger.Debug("nothing to prune")
	}
	return res, nil
}

// sweepUploads removes staged files last modified before cutoff.
func (r *Retention) sweepUploads(cutoff time.Time) int {
	entries, err := os.ReadDir(r.uploadDir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn("read upload dir", logger.String("dir", r.uploadDir), logger.Error(err))
		}
		return 0
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(r.uploadDir, e.Name())
		if err := os.Remove(path); err != nil {
			r.logger.Warn("remove staged upload", logger.String("path", path), logger.Error(err))
			continue
		}
		removed++
	}
	return removed
}
