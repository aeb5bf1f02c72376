package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/histlens/internal/artifact"
	"github.com/runnerr0/histlens/internal/correlate"
	"github.com/runnerr0/histlens/internal/logger"
	"github.com/runnerr0/histlens/internal/syncinfo"
)

// Request describes one artifact to process.
type Request struct {
	// ID is the artifact identifier; NewID() is used when empty.
	ID string
	// Path is the database file on disk.
	Path string
	// SourceName is the name the file was uploaded or ingested under. It is
	// used for family detection when Family is empty.
	SourceName string
	// Family overrides detection.
	Family artifact.Family
	// SidecarPath is the profile preferences file. Empty means look beside
	// Path.
	SidecarPath string
}

// Processor runs extraction, correlation and sync parsing for an artifact.
type Processor struct {
	engine *correlate.Engine
	log    logger.Logger
	now    func() time.Time
}

// NewProcessor returns a Processor using engine for correlation.
func NewProcessor(engine *correlate.Engine, log logger.Logger) *Processor {
	if engine == nil {
		engine = correlate.New(correlate.DefaultOptions())
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Processor{engine: engine, log: log, now: time.Now}
}

// Process builds the Bundle for req. Only an unreadable or unrecognised
// history database is an error; missing downloads or sync data degrade to
// empty lists.
func (p *Processor) Process(ctx context.Context, req Request) (*Bundle, error) {
	start := p.now()

	id := req.ID
	if id == "" {
		id = NewID()
	}
	name := req.SourceName
	if name == "" {
		name = req.Path
	}
	family := req.Family
	if family == "" {
		family = artifact.DetectFamily(name)
	}

	log := p.log.With(logger.String("artifact_id", id), logger.String("browser", string(family)))

	ex, err := artifact.Extract(ctx, req.Path, family)
	if err != nil {
		return nil, fmt.Errorf("extract %s history: %w", family, err)
	}
	log.Debug("extraction strategy", logger.String("strategy", ex.Strategy.Describe()))
	for _, w := range ex.Warnings {
		log.Warn("partial extraction", logger.String("detail", w))
	}

	// Correlation always sees the full snapshot, never a display page.
	groups := p.engine.Correlate(ex.Snapshot.Visits, ex.Downloads)

	sidecar := req.SidecarPath
	if sidecar == "" {
		sidecar = syncinfo.SidecarPath(family, req.Path)
	}
	info, err := syncinfo.Load(family, sidecar)
	if err != nil {
		log.Warn("sync info unavailable", logger.String("sidecar", sidecar), logger.Error(err))
		info = syncinfo.Empty()
	}
	info.SyncedVisits = ex.SyncedVisits

	b := &Bundle{
		ID:              id,
		Family:          family,
		SourceName:      name,
		ProcessedAt:     p.now().UTC(),
		Strategy:        ex.Strategy.Describe(),
		Visits:          ex.Snapshot.Visits,
		Downloads:       ex.Downloads,
		DownloadSources: groups,
		SyncInfo:        info,
		Warnings:        ex.Warnings,
	}

	log.Info("artifact processed",
		logger.Int("visits", len(b.Visits)),
		logger.Int("downloads", len(b.Downloads)),
		logger.Int("correlated", b.CorrelatedCount()),
		logger.Duration("elapsed", p.now().Sub(start)),
	)
	return b, nil
}
