package artifact

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/runnerr0/histlens/internal/timeconv"
	"github.com/runnerr0/histlens/internal/urlutil"
)

const chromiumVisitsQuery = `
	SELECT IFNULL(u.url, ''), IFNULL(u.title, ''), IFNULL(u.visit_count, 0), IFNULL(v.visit_time, 0)
	FROM urls u
	JOIN visits v ON u.id = v.url
	ORDER BY v.visit_time DESC
`

// heuristicDownloadsQuery finds probable downloads among visited URLs when a
// profile has no downloads table.
const heuristicDownloadsQuery = `
	SELECT IFNULL(u.url, ''), IFNULL(u.last_visit_time, 0)
	FROM urls u
	WHERE u.url LIKE '%/download%'
	   OR u.url LIKE '%.exe'
	   OR u.url LIKE '%.zip'
	   OR u.url LIKE '%.pdf'
	   OR u.url LIKE '%.doc%'
	   OR u.url LIKE '%.xls%'
	   OR u.url LIKE '%.jpg'
	   OR u.url LIKE '%.png'
	   OR u.url LIKE '%.mp3'
	   OR u.url LIKE '%.mp4'
	ORDER BY u.last_visit_time DESC
	LIMIT 100
`

const syncedVisitsQuery = `
	SELECT IFNULL(u.url, ''), IFNULL(u.title, ''), IFNULL(v.visit_time, 0), vs.source
	FROM urls u
	JOIN visits v ON u.id = v.url
	JOIN visit_source vs ON v.id = vs.id
	ORDER BY v.visit_time DESC
	LIMIT 1000
`

func (s ChromiumStrategy) visits(ctx context.Context, db *sql.DB) ([]VisitRecord, error) {
	rows, err := db.QueryContext(ctx, chromiumVisitsQuery)
	if err != nil {
		return nil, fmt.Errorf("query visits: %w", err)
	}
	defer rows.Close()

	visits := []VisitRecord{}
	for rows.Next() {
		var v VisitRecord
		var raw int64
		if err := rows.Scan(&v.URL, &v.Title, &v.VisitCount, &raw); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		v.Domain = urlutil.Domain(v.URL)
		v.VisitTime = timeconv.WebKit.Instant(raw)
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// column returns the expression for an optional downloads column.
func (s ChromiumStrategy) column(name, fallback string) string {
	if s.columns[name] {
		return fmt.Sprintf("IFNULL(d.%s, %s)", name, fallback)
	}
	return fallback
}

func (s ChromiumStrategy) urlExpr() string {
	switch s.URLSource {
	case URLFromChain:
		return "IFNULL((SELECT c.url FROM downloads_url_chains c WHERE c.id = d.id ORDER BY c.chain_index ASC LIMIT 1), '')"
	case URLFromNothing:
		return "''"
	default:
		return fmt.Sprintf("IFNULL(d.%s, '')", s.URLSource)
	}
}

func (s ChromiumStrategy) downloadsQuery() string {
	filename := fmt.Sprintf("IFNULL(CAST(d.%s AS TEXT), '')", s.FilenameColumn)
	return fmt.Sprintf(`
	SELECT %s, %s, %s, %s, %s, %s, %s
	FROM downloads d
	ORDER BY %s DESC
	`,
		filename,
		s.urlExpr(),
		s.column("referrer", "''"),
		s.column("start_time", "0"),
		s.column("mime_type", "''"),
		s.column("received_bytes", "0"),
		s.column("state", "0"),
		s.column("start_time", "0"),
	)
}

func (s ChromiumStrategy) downloads(ctx context.Context, db *sql.DB) ([]DownloadRecord, error) {
	if !s.HasDownloads {
		return heuristicDownloads(ctx, db)
	}
	if s.URLSource == URLFromNothing {
		return nil, fmt.Errorf("downloads table has no usable url column")
	}

	rows, err := db.QueryContext(ctx, s.downloadsQuery())
	if err != nil {
		return nil, fmt.Errorf("query downloads: %w", err)
	}
	defer rows.Close()

	downloads := []DownloadRecord{}
	for rows.Next() {
		var d DownloadRecord
		var path string
		var start int64
		var state int
		if err := rows.Scan(&path, &d.SourceURL, &d.Referrer, &start, &d.MimeType, &d.FileSize, &state); err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		d.Filename = BaseName(path)
		d.DownloadTime = timeconv.WebKit.Instant(start)
		d.Status = ChromiumDownloadState(state)
		downloads = append(downloads, d)
	}
	return downloads, rows.Err()
}

func heuristicDownloads(ctx context.Context, db *sql.DB) ([]DownloadRecord, error) {
	rows, err := db.QueryContext(ctx, heuristicDownloadsQuery)
	if err != nil {
		return nil, fmt.Errorf("query download-like urls: %w", err)
	}
	defer rows.Close()

	downloads := []DownloadRecord{}
	for rows.Next() {
		var d DownloadRecord
		var last int64
		if err := rows.Scan(&d.SourceURL, &last); err != nil {
			return nil, fmt.Errorf("scan download-like url: %w", err)
		}
		d.Filename = d.SourceURL
		if i := strings.LastIndex(d.SourceURL, "/"); i >= 0 {
			d.Filename = d.SourceURL[i+1:]
		}
		d.DownloadTime = timeconv.WebKit.Instant(last)
		d.Status = StatusCompleted
		downloads = append(downloads, d)
	}
	return downloads, rows.Err()
}

func (s ChromiumStrategy) syncedVisits(ctx context.Context, db *sql.DB) ([]SyncedVisit, error) {
	if !s.HasVisitSource {
		return []SyncedVisit{}, nil
	}

	rows, err := db.QueryContext(ctx, syncedVisitsQuery)
	if err != nil {
		return nil, fmt.Errorf("query visit sources: %w", err)
	}
	defer rows.Close()

	visits := []SyncedVisit{}
	for rows.Next() {
		var v SyncedVisit
		var raw int64
		if err := rows.Scan(&v.URL, &v.Title, &raw, &v.Source); err != nil {
			return nil, fmt.Errorf("scan visit source: %w", err)
		}
		v.VisitTime = timeconv.WebKit.Instant(raw)
		v.SourceDesc = VisitSourceDescription(v.Source)
		visits = append(visits, v)
	}
	return visits, rows.Err()
}
