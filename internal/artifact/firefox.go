package artifact

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/runnerr0/histlens/internal/timeconv"
	"github.com/runnerr0/histlens/internal/urlutil"
)

const firefoxVisitsQuery = `
	SELECT IFNULL(p.url, ''), IFNULL(p.title, ''), IFNULL(p.visit_count, 0), IFNULL(h.visit_date, 0)
	FROM moz_places p
	JOIN moz_historyvisits h ON p.id = h.place_id
	ORDER BY h.visit_date DESC
`

// firefoxDownloadsQuery reads the destination annotation of each download
// and, when present, the JSON metaData annotation on the same place. A
// place with both destination annotations yields one row, from the URI.
const firefoxDownloadsQuery = `
	SELECT IFNULL(a.content, ''), IFNULL(p.url, ''), IFNULL(a.dateAdded, 0),
	       IFNULL((
	           SELECT m.content FROM moz_annos m
	           JOIN moz_anno_attributes ma ON m.anno_attribute_id = ma.id
	           WHERE m.place_id = a.place_id AND ma.name = 'downloads/metaData'
	           LIMIT 1
	       ), '')
	FROM moz_annos a
	JOIN moz_places p ON a.place_id = p.id
	JOIN moz_anno_attributes aa ON a.anno_attribute_id = aa.id
	WHERE aa.name = 'downloads/destinationFileURI'
	   OR (aa.name = 'downloads/destinationFileName' AND NOT EXISTS (
	           SELECT 1 FROM moz_annos u
	           JOIN moz_anno_attributes ua ON u.anno_attribute_id = ua.id
	           WHERE u.place_id = a.place_id AND ua.name = 'downloads/destinationFileURI'
	       ))
	ORDER BY a.dateAdded DESC
`

// firefoxAllAnnosQuery is used when annotation attribute names are not
// available or name no downloads; every annotation is treated as a
// download.
const firefoxAllAnnosQuery = `
	SELECT IFNULL(a.content, ''), IFNULL(p.url, ''), IFNULL(a.dateAdded, 0), ''
	FROM moz_annos a
	JOIN moz_places p ON a.place_id = p.id
	ORDER BY a.dateAdded DESC
`

// downloadMeta is the JSON payload of the downloads/metaData annotation.
type downloadMeta struct {
	State    *int  `json:"state"`
	FileSize int64 `json:"fileSize"`
}

func (s FirefoxStrategy) visits(ctx context.Context, db *sql.DB) ([]VisitRecord, error) {
	rows, err := db.QueryContext(ctx, firefoxVisitsQuery)
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
		v.VisitTime = timeconv.UnixMicro.Instant(raw)
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

func (s FirefoxStrategy) downloads(ctx context.Context, db *sql.DB) ([]DownloadRecord, error) {
	if !s.HasAnnos {
		return []DownloadRecord{}, nil
	}

	if s.HasAnnoAttributes {
		downloads, err := scanFirefoxDownloads(ctx, db, firefoxDownloadsQuery)
		if err != nil || len(downloads) > 0 {
			return downloads, err
		}
	}
	return scanFirefoxDownloads(ctx, db, firefoxAllAnnosQuery)
}

func scanFirefoxDownloads(ctx context.Context, db *sql.DB, query string) ([]DownloadRecord, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query download annotations: %w", err)
	}
	defer rows.Close()

	downloads := []DownloadRecord{}
	for rows.Next() {
		var content, pageURL, meta string
		var added int64
		if err := rows.Scan(&content, &pageURL, &added, &meta); err != nil {
			return nil, fmt.Errorf("scan download annotation: %w", err)
		}

		// metaData payloads are JSON, never a destination.
		if strings.HasPrefix(strings.TrimSpace(content), "{") {
			continue
		}
		name := BaseName(content)
		if name == "" {
			continue
		}

		d := DownloadRecord{
			Filename:     name,
			SourceURL:    pageURL,
			DownloadTime: timeconv.UnixMicro.Instant(added),
			Status:       StatusCompleted,
		}
		applyDownloadMeta(&d, meta)
		downloads = append(downloads, d)
	}
	return downloads, rows.Err()
}

// applyDownloadMeta fills status and size from a metaData annotation.
// Malformed payloads leave the defaults in place.
func applyDownloadMeta(d *DownloadRecord, raw string) {
	if raw == "" {
		return
	}
	var meta downloadMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return
	}
	if meta.State != nil {
		d.Status = FirefoxDownloadState(*meta.State)
	}
	if meta.FileSize > 0 {
		d.FileSize = meta.FileSize
	}
}

func (s FirefoxStrategy) syncedVisits(ctx context.Context, db *sql.DB) ([]SyncedVisit, error) {
	return []SyncedVisit{}, nil
}
