package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/runnerr0/histlens/internal/analysis"
	"github.com/runnerr0/histlens/internal/artifact"
	"github.com/runnerr0/histlens/internal/correlate"
	"github.com/runnerr0/histlens/internal/syncinfo"
	"github.com/runnerr0/histlens/internal/timeconv"
	"github.com/runnerr0/histlens/internal/urlutil"
)

// SaveBundle archives b in one transaction. An artifact already stored
// under b.ID is replaced. Visits and source candidates on excluded domains
// are dropped; downloads are always kept.
func (s *SQLiteStore) SaveBundle(ctx context.Context, b *analysis.Bundle) (SaveResult, error) {
	var res SaveResult
	if b == nil || b.ID == "" {
		return res, fmt.Errorf("save bundle: missing artifact id")
	}

	syncJSON, err := json.Marshal(b.SyncInfo)
	if err != nil {
		return res, fmt.Errorf("encode sync info: %w", err)
	}
	warnings := b.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warnJSON, err := json.Marshal(warnings)
	if err != nil {
		return res, fmt.Errorf("encode warnings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM visits_fts WHERE artifact_id = ?", b.ID); err != nil {
		return res, fmt.Errorf("clear FTS entries: %w", err)
	}
	del, err := tx.StmtContext(ctx, s.deleteArtifact).ExecContext(ctx, b.ID)
	if err != nil {
		return res, fmt.Errorf("replace artifact: %w", err)
	}
	if n, _ := del.RowsAffected(); n > 0 {
		res.Replaced = true
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO artifacts (id, browser, source_name, strategy, processed_at, sync_info, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, string(b.Family), b.SourceName, b.Strategy, formatTS(b.ProcessedAt),
		string(syncJSON), string(warnJSON),
	)
	if err != nil {
		return res, fmt.Errorf("insert artifact: %w", err)
	}

	insertVisit, err := tx.PrepareContext(ctx, `
		INSERT INTO visits (artifact_id, seq, url, title, domain, visit_time, visit_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return res, fmt.Errorf("prepare visit insert: %w", err)
	}
	defer insertVisit.Close()

	insertFTS, err := tx.PrepareContext(ctx,
		"INSERT INTO visits_fts (visit_id, artifact_id, title, url) VALUES (?, ?, ?, ?)")
	if err != nil {
		return res, fmt.Errorf("prepare FTS insert: %w", err)
	}
	defer insertFTS.Close()

	for i, v := range b.Visits {
		if s.IsExcluded(v.Domain) {
			res.ExcludedVisits++
			continue
		}
		r, err := insertVisit.ExecContext(ctx, b.ID, i, v.URL, v.Title, v.Domain, formatTS(v.VisitTime.Time), v.VisitCount)
		if err != nil {
			return res, fmt.Errorf("insert visit %d: %w", i, err)
		}
		visitID, err := r.LastInsertId()
		if err != nil {
			return res, err
		}
		if _, err := insertFTS.ExecContext(ctx, visitID, b.ID, v.Title, v.URL); err != nil {
			return res, fmt.Errorf("insert FTS: %w", err)
		}
		res.Visits++
	}

	insertDownload, err := tx.PrepareContext(ctx, `
		INSERT INTO downloads (artifact_id, seq, filename, url, referrer, download_time, file_size, mime_type, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return res, fmt.Errorf("prepare download insert: %w", err)
	}
	defer insertDownload.Close()

	insertSource, err := tx.PrepareContext(ctx, `
		INSERT INTO download_sources (download_id, position, url, title, visit_time, match_type)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return res, fmt.Errorf("prepare source insert: %w", err)
	}
	defer insertSource.Close()

	for i, d := range b.Downloads {
		r, err := insertDownload.ExecContext(ctx, b.ID, i, d.Filename, d.SourceURL, d.Referrer,
			formatTS(d.DownloadTime.Time), d.FileSize, d.MimeType, string(d.Status))
		if err != nil {
			return res, fmt.Errorf("insert download %d: %w", i, err)
		}
		res.Downloads++

		// Groups are produced one per download, in download order.
		if i >= len(b.DownloadSources) {
			continue
		}
		downloadID, err := r.LastInsertId()
		if err != nil {
			return res, err
		}
		pos := 0
		for _, c := range b.DownloadSources[i].Sources {
			if s.IsExcluded(urlutil.Domain(c.URL)) {
				res.ExcludedSources++
				continue
			}
			if _, err := insertSource.ExecContext(ctx, downloadID, pos, c.URL, c.Title,
				formatTS(c.Time.Time), string(c.MatchType)); err != nil {
				return res, fmt.Errorf("insert source for download %d: %w", i, err)
			}
			pos++
			res.Sources++
		}
	}

	detail := fmt.Sprintf("%d visits, %d downloads, %d sources", res.Visits, res.Downloads, res.Sources)
	if err := s.writeAudit(ctx, tx, "save", detail, b.ID); err != nil {
		return res, err
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// LoadBundle rebuilds an archived artifact. It returns ErrNotFound for an
// unknown id.
func (s *SQLiteStore) LoadBundle(ctx context.Context, id string) (*analysis.Bundle, error) {
	var (
		b                  analysis.Bundle
		family, processed  string
		syncJSON, warnJSON string
	)
	err := s.getArtifact.QueryRowContext(ctx, id).Scan(
		&b.ID, &family, &b.SourceName, &b.Strategy, &processed, &syncJSON, &warnJSON,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("artifact %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	b.Family = artifact.Family(family)
	b.ProcessedAt, _ = parseTimestamp(processed)

	b.SyncInfo = syncinfo.Empty()
	if err := json.Unmarshal([]byte(syncJSON), &b.SyncInfo); err != nil {
		return nil, fmt.Errorf("decode sync info: %w", err)
	}
	if err := json.Unmarshal([]byte(warnJSON), &b.Warnings); err != nil {
		return nil, fmt.Errorf("decode warnings: %w", err)
	}
	if len(b.Warnings) == 0 {
		b.Warnings = nil
	}

	if b.Visits, err = s.loadVisits(ctx, id); err != nil {
		return nil, err
	}
	if b.Downloads, b.DownloadSources, err = s.loadDownloads(ctx, id); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *SQLiteStore) loadVisits(ctx context.Context, id string) ([]artifact.VisitRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, title, domain, visit_time, visit_count
		FROM visits WHERE artifact_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query visits: %w", err)
	}
	defer rows.Close()

	visits := []artifact.VisitRecord{}
	for rows.Next() {
		var v artifact.VisitRecord
		var ts string
		if err := rows.Scan(&v.URL, &v.Title, &v.Domain, &ts, &v.VisitCount); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		v.VisitTime = instant(ts)
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

func (s *SQLiteStore) loadDownloads(ctx context.Context, id string) ([]artifact.DownloadRecord, []correlate.DownloadSourceGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, url, referrer, download_time, file_size, mime_type, status
		FROM downloads WHERE artifact_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("query downloads: %w", err)
	}

	downloads := []artifact.DownloadRecord{}
	groups := []correlate.DownloadSourceGroup{}
	index := map[int64]int{}
	for rows.Next() {
		var d artifact.DownloadRecord
		var rowID int64
		var ts, status string
		if err := rows.Scan(&rowID, &d.Filename, &d.SourceURL, &d.Referrer, &ts, &d.FileSize, &d.MimeType, &status); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scan download: %w", err)
		}
		d.DownloadTime = instant(ts)
		d.Status = artifact.DownloadStatus(status)
		index[rowID] = len(downloads)
		downloads = append(downloads, d)
		groups = append(groups, correlate.DownloadSourceGroup{
			Filename:     d.Filename,
			DownloadURL:  d.SourceURL,
			DownloadTime: d.DownloadTime,
			Sources:      []correlate.SourceCandidate{},
		})
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, nil, err
	}

	srcRows, err := s.db.QueryContext(ctx, `
		SELECT ds.download_id, ds.url, ds.title, ds.visit_time, ds.match_type
		FROM download_sources ds
		JOIN downloads d ON d.id = ds.download_id
		WHERE d.artifact_id = ?
		ORDER BY d.seq, ds.position`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("query download sources: %w", err)
	}
	defer srcRows.Close()

	for srcRows.Next() {
		var downloadID int64
		var c correlate.SourceCandidate
		var ts, mt string
		if err := srcRows.Scan(&downloadID, &c.URL, &c.Title, &ts, &mt); err != nil {
			return nil, nil, fmt.Errorf("scan download source: %w", err)
		}
		c.Time = instant(ts)
		c.MatchType = correlate.MatchType(mt)
		if i, ok := index[downloadID]; ok {
			groups[i].Sources = append(groups[i].Sources, c)
		}
	}
	return downloads, groups, srcRows.Err()
}

func instant(ts string) timeconv.Instant {
	if ts == "" {
		return timeconv.Empty
	}
	t, err := parseTimestamp(ts)
	if err != nil {
		return timeconv.Empty
	}
	return timeconv.At(t)
}
