package artifact

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Extraction is everything read from one artifact database.
type Extraction struct {
	Family       Family
	Strategy     Strategy
	Snapshot     Snapshot
	Downloads    []DownloadRecord
	SyncedVisits []SyncedVisit

	// Warnings lists optional data that could not be read. The extraction
	// still succeeded; the affected lists are empty.
	Warnings []string
}

// Extract opens the database at path read-only and extracts it with the
// strategy probed for family.
func Extract(ctx context.Context, path string, family Family) (*Extraction, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	db, err := sql.Open("sqlite3", readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer db.Close()

	return ExtractDB(ctx, db, family)
}

// ExtractDB extracts from an already opened database.
func ExtractDB(ctx context.Context, db *sql.DB, family Family) (*Extraction, error) {
	strategy, err := Probe(ctx, db, family)
	if err != nil {
		return nil, err
	}

	visits, err := strategy.visits(ctx, db)
	if err != nil {
		return nil, err
	}

	ex := &Extraction{
		Family:       family,
		Strategy:     strategy,
		Snapshot:     Snapshot{Visits: visits},
		Downloads:    []DownloadRecord{},
		SyncedVisits: []SyncedVisit{},
	}

	if downloads, err := strategy.downloads(ctx, db); err != nil {
		ex.Warnings = append(ex.Warnings, fmt.Sprintf("downloads: %v", err))
	} else {
		ex.Downloads = downloads
	}

	if synced, err := strategy.syncedVisits(ctx, db); err != nil {
		ex.Warnings = append(ex.Warnings, fmt.Sprintf("synced visits: %v", err))
	} else {
		ex.SyncedVisits = synced
	}

	return ex, nil
}

func readOnlyDSN(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path), RawQuery: "mode=ro"}
	return u.String()
}
