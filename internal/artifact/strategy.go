package artifact

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Strategy is the extraction plan for one artifact, resolved once by Probe
// from the tables and columns actually present in the database.
type Strategy interface {
	Family() Family
	// Describe summarises the plan for logs and status output.
	Describe() string

	visits(ctx context.Context, db *sql.DB) ([]VisitRecord, error)
	downloads(ctx context.Context, db *sql.DB) ([]DownloadRecord, error)
	syncedVisits(ctx context.Context, db *sql.DB) ([]SyncedVisit, error)
}

// URLSource names where a Chromium download's URL is read from.
type URLSource string

const (
	URLFromColumn      URLSource = "url"
	URLFromChain       URLSource = "downloads_url_chains"
	URLFromTab         URLSource = "tab_url"
	URLFromOriginalURL URLSource = "original_url"
	URLFromNothing     URLSource = ""
)

// ChromiumStrategy is the plan for Chrome/Edge History databases.
type ChromiumStrategy struct {
	HasDownloads   bool
	FilenameColumn string
	URLSource      URLSource
	HasVisitSource bool

	// optional downloads columns, keyed by name
	columns map[string]bool
}

// FirefoxStrategy is the plan for places.sqlite databases.
type FirefoxStrategy struct {
	HasAnnos          bool
	HasAnnoAttributes bool
}

func (ChromiumStrategy) Family() Family { return Chromium }
func (FirefoxStrategy) Family() Family  { return Firefox }

func (s ChromiumStrategy) Describe() string {
	if !s.HasDownloads {
		return "chromium: no downloads table, url heuristics"
	}
	parts := []string{
		"chromium",
		"filename=" + s.FilenameColumn,
		"url=" + string(s.URLSource),
	}
	if s.HasVisitSource {
		parts = append(parts, "visit_source")
	}
	return strings.Join(parts, " ")
}

func (s FirefoxStrategy) Describe() string {
	switch {
	case !s.HasAnnos:
		return "firefox: no annotations"
	case s.HasAnnoAttributes:
		return "firefox: download annotations"
	default:
		return "firefox: all annotations"
	}
}

// Probe inspects db and returns the extraction strategy for family.
func Probe(ctx context.Context, db *sql.DB, family Family) (Strategy, error) {
	tables, err := tableNames(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	if family == Firefox {
		if !tables["moz_places"] || !tables["moz_historyvisits"] {
			return nil, fmt.Errorf("not a firefox history database: moz_places/moz_historyvisits missing")
		}
		return FirefoxStrategy{
			HasAnnos:          tables["moz_annos"],
			HasAnnoAttributes: tables["moz_annos"] && tables["moz_anno_attributes"],
		}, nil
	}

	if !tables["urls"] || !tables["visits"] {
		return nil, fmt.Errorf("not a chromium history database: urls/visits missing")
	}

	s := ChromiumStrategy{
		HasDownloads:   tables["downloads"],
		HasVisitSource: tables["visit_source"],
	}
	if !s.HasDownloads {
		return s, nil
	}

	cols, err := columnNames(ctx, db, "downloads")
	if err != nil {
		return nil, fmt.Errorf("inspect downloads: %w", err)
	}
	s.columns = cols

	switch {
	case cols["target_path"]:
		s.FilenameColumn = "target_path"
	case cols["current_path"]:
		s.FilenameColumn = "current_path"
	default:
		s.FilenameColumn = "id"
	}

	switch {
	case cols["url"]:
		s.URLSource = URLFromColumn
	case tables["downloads_url_chains"]:
		s.URLSource = URLFromChain
	case cols["tab_url"]:
		s.URLSource = URLFromTab
	case cols["original_url"]:
		s.URLSource = URLFromOriginalURL
	default:
		s.URLSource = URLFromNothing
	}

	return s, nil
}

func tableNames(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = true
	}
	return names, rows.Err()
}

func columnNames(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	names := map[string]bool{}
	for rows.Next() {
		// cid, name, type, notnull, dflt_value, pk
		values := make([]interface{}, len(cols))
		var name string
		for i := range values {
			if cols[i] == "name" {
				values[i] = &name
			} else {
				values[i] = new(interface{})
			}
		}
		if err := rows.Scan(values...); err != nil {
			return nil, err
		}
		names[name] = true
	}
	return names, rows.Err()
}
