package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/runnerr0/histlens/internal/analysis"
	"github.com/runnerr0/histlens/internal/artifact"
	"github.com/runnerr0/histlens/internal/httpserver/deps"
	"github.com/runnerr0/histlens/internal/logger"
	"github.com/runnerr0/histlens/internal/storage"
)

// errUnknownID means no cache entry, archive row or staged upload exists.
var errUnknownID = errors.New("invalid file ID")

func stagedPaths(dir, id string) (dbPath, prefsPath string) {
	return filepath.Join(dir, id+".db"), filepath.Join(dir, id+".prefs")
}

// lookup finds the bundle for id: cache first, then the archive, then the
// staged upload, which is processed again. Archive and re-processing hits
// are put back in the cache.
func lookup(ctx context.Context, d deps.Deps, id string) (*analysis.Bundle, error) {
	if id == "" {
		return nil, errUnknownID
	}
	log := d.Logger.With(logger.String("file_id", id))

	b, ok, err := d.Cache.Get(ctx, id)
	if err != nil {
		log.Warn("cache read failed", logger.Error(err))
	}
	if ok {
		return b, nil
	}

	if d.Archive != nil {
		b, err = d.Archive.LoadBundle(ctx, id)
		switch {
		case err == nil:
			log.Debug("served from archive")
			remember(ctx, d, b)
			return b, nil
		case !errors.Is(err, storage.ErrNotFound):
			return nil, err
		}
	}

	b, err = reprocess(ctx, d, id)
	if err != nil {
		return nil, err
	}
	remember(ctx, d, b)
	return b, nil
}

// reprocess rebuilds a bundle from its staged upload. The original file
// name is gone, so each family is tried in turn.
func reprocess(ctx context.Context, d deps.Deps, id string) (*analysis.Bundle, error) {
	if d.UploadDir == "" || !analysis.ValidID(id) {
		return nil, errUnknownID
	}
	dbPath, prefsPath := stagedPaths(d.UploadDir, id)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, errUnknownID
	}

	var lastErr error
	for _, family := range []artifact.Family{artifact.Chromium, artifact.Firefox} {
		b, err := d.Processor.Process(ctx, analysis.Request{
			ID:          id,
			Path:        dbPath,
			SourceName:  filepath.Base(dbPath),
			Family:      family,
			SidecarPath: prefsPath,
		})
		if err == nil {
			d.Logger.Info("re-processed staged upload", logger.String("file_id", id))
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func remember(ctx context.Context, d deps.Deps, b *analysis.Bundle) {
	if err := d.Cache.Put(ctx, b); err != nil {
		d.Logger.Warn("cache write failed", logger.String("file_id", b.ID), logger.Error(err))
	}
}
