package deps

import (
	"context"
	"time"

	"github.com/runnerr0/histlens/internal/analysis"
	"github.com/runnerr0/histlens/internal/cache"
	"github.com/runnerr0/histlens/internal/logger"
	"github.com/runnerr0/histlens/internal/storage"
)

// Archive is the part of storage.Store the API needs.
type Archive interface {
	SaveBundle(ctx context.Context, b *analysis.Bundle) (storage.SaveResult, error)
	LoadBundle(ctx context.Context, id string) (*analysis.Bundle, error)
	ListArtifacts(ctx context.Context) ([]storage.ArtifactSummary, error)
}

type Deps struct {
	Logger          logger.Logger
	StartTime       time.Time
	Version         string
	Processor       *analysis.Processor // correlation settings live in its engine
	Cache           cache.Cache         // recently processed bundles
	Archive         Archive             // nil disables archiving and the archive fallback
	UploadDir       string              // staged uploads, <id>.db and <id>.prefs
	DefaultPageSize int                 // page_size when the client sends none
	MaxRequestSize  int64               // upload body limit in bytes, 0 for none
}
