package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/runnerr0/histlens/internal/analysis"
	"github.com/runnerr0/histlens/internal/artifact"
	"github.com/runnerr0/histlens/internal/logger"
	"github.com/runnerr0/histlens/internal/storage"
)

// ingestJSON is the JSON output structure for the ingest command.
type ingestJSON struct {
	ID              string   `json:"id"`
	Browser         string   `json:"browser"`
	SourceName      string   `json:"source_name"`
	Strategy        string   `json:"strategy"`
	Visits          int      `json:"visits"`
	Downloads       int      `json:"downloads"`
	Correlated      int      `json:"correlated_downloads"`
	SyncedVisits    int      `json:"synced_visits"`
	SyncAccount     string   `json:"sync_account,omitempty"`
	Archived        bool     `json:"archived"`
	Replaced        bool     `json:"replaced"`
	ExcludedVisits  int      `json:"excluded_visits"`
	ExcludedSources int      `json:"excluded_sources"`
	Warnings        []string `json:"warnings"`
}

// Execute implements the go-flags Commander interface for IngestCommand.
func (c *IngestCommand) Execute(args []string) error {
	if c.File == "" && len(args) > 0 {
		c.File = args[0]
	}
	if c.File == "" {
		return fmt.Errorf("--file is required for ingest command")
	}
	if _, err := os.Stat(c.File); err != nil {
		return fmt.Errorf("history file: %w", err)
	}
	if c.ID != "" && !analysis.ValidID(c.ID) {
		return fmt.Errorf("invalid artifact ID %q", c.ID)
	}

	var family artifact.Family
	if c.Browser != "" {
		f, err := artifact.ParseFamily(c.Browser)
		if err != nil {
			return err
		}
		family = f
	}

	ctx := context.Background()
	sess, err := openSession(ctx, c.globals, c.store)
	if err != nil {
		return err
	}
	defer sess.Close()

	proc := analysis.NewProcessor(newEngine(sess.cfg), sess.log)
	b, err := proc.Process(ctx, analysis.Request{
		ID:          c.ID,
		Path:        c.File,
		SourceName:  artifact.BaseName(c.File),
		Family:      family,
		SidecarPath: c.Sidecar,
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	var res storage.SaveResult
	archived := sess.cfg.Archive.Enabled
	if archived {
		res, err = sess.store.SaveBundle(ctx, b)
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		sess.log.Debug("archived artifact",
			logger.String("artifact_id", b.ID),
			logger.Int("visits", res.Visits),
			logger.Int("sources", res.Sources))
	} else {
		sess.log.Warn("archive disabled; result not stored", logger.String("artifact_id", b.ID))
	}

	out := ingestJSON{
		ID:              b.ID,
		Browser:         string(b.Family),
		SourceName:      b.SourceName,
		Strategy:        b.Strategy,
		Visits:          len(b.Visits),
		Downloads:       len(b.Downloads),
		Correlated:      b.CorrelatedCount(),
		SyncedVisits:    len(b.SyncInfo.SyncedVisits),
		SyncAccount:     b.SyncInfo.AccountInfo.Email,
		Archived:        archived,
		Replaced:        res.Replaced,
		ExcludedVisits:  res.ExcludedVisits,
		ExcludedSources: res.ExcludedSources,
		Warnings:        b.Warnings,
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(out)
	}
	c.printHuman(out)
	return nil
}

func (c *IngestCommand) printHuman(out ingestJSON) {
	fmt.Printf("Ingested %s\n", out.ID)
	fmt.Printf("Browser:     %s\n", out.Browser)
	fmt.Printf("Source:      %s\n", out.SourceName)
	fmt.Printf("Strategy:    %s\n", out.Strategy)
	fmt.Printf("Visits:      %d\n", out.Visits)
	fmt.Printf("Downloads:   %d (%d with sources)\n", out.Downloads, out.Correlated)
	fmt.Printf("Synced:      %d\n", out.SyncedVisits)
	if out.SyncAccount != "" {
		fmt.Printf("Account:     %s\n", out.SyncAccount)
	}
	switch {
	case !out.Archived:
		fmt.Println("Archive:     disabled")
	case out.Replaced:
		fmt.Println("Archive:     replaced existing artifact")
	default:
		fmt.Println("Archive:     stored")
	}
	if out.ExcludedVisits > 0 || out.ExcludedSources > 0 {
		fmt.Printf("Excluded:    %d visits, %d sources\n", out.ExcludedVisits, out.ExcludedSources)
	}
	for _, w := range out.Warnings {
		fmt.Printf("Warning:     %s\n", w)
	}
}
