// Package storage archives processed artifacts in SQLite so they can be
// reopened, searched and exported after the in-memory cache drops them.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/runnerr0/histlens/internal/analysis"
)

// Store defines the archive operations.
type Store interface {
	SaveBundle(ctx context.Context, b *analysis.Bundle) (SaveResult, error)
	LoadBundle(ctx context.Context, id string) (*analysis.Bundle, error)
	ListArtifacts(ctx context.Context) ([]ArtifactSummary, error)
	SearchVisits(ctx context.Context, q SearchQuery) ([]VisitHit, error)
	DeleteArtifact(ctx context.Context, id string) error
	PruneExpired(ctx context.Context, olderThan time.Time) (int64, error)
	PurgeAll(ctx context.Context) error
	GetStats(ctx context.Context) (*Stats, error)
	IsExcluded(domain string) bool
	Close() error
}

// tsLayout is fixed width so stored timestamps compare correctly as text.
const tsLayout = "2006-01-02T15:04:05.000000Z07:00"

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	ownsDB bool
	audit  bool

	// Prepared statements
	getArtifact    *sql.Stmt
	deleteArtifact *sql.Stmt
	insertAudit    *sql.Stmt

	// Cached exclusion rules, reloaded by SeedExclusions
	domainExclusions []string
	regexExclusions  []*regexp.Regexp
}

// OpenOptions configures Open.
type OpenOptions struct {
	JournalMode string
	Audit       bool
}

// Open creates the parent directory of path if needed, opens the database,
// applies migrations and returns a store that closes the database on Close.
func Open(ctx context.Context, path string, opts OpenOptions) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := NewMigrationRunner(db).WithJournalMode(opts.JournalMode).RunContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}

	s, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	s.audit = opts.Audit
	return s, nil
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, audit: true}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	if err := s.initFTS(); err != nil {
		return nil, fmt.Errorf("init FTS: %w", err)
	}

	if err := s.loadExclusions(); err != nil {
		return nil, fmt.Errorf("load exclusions: %w", err)
	}

	return s, nil
}

// SetAudit turns audit_log writes on or off.
func (s *SQLiteStore) SetAudit(on bool) {
	s.audit = on
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.getArtifact, err = s.db.Prepare(`
		SELECT id, browser, source_name, strategy, processed_at, sync_info, warnings
		FROM artifacts WHERE id = ?
	`)
	if err != nil {
		return err
	}

	s.deleteArtifact, err = s.db.Prepare(`DELETE FROM artifacts WHERE id = ?`)
	if err != nil {
		return err
	}

	s.insertAudit, err = s.db.Prepare(`
		INSERT INTO audit_log (action, detail, artifact_id) VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}

	return nil
}

// initFTS creates the FTS5 virtual table for full-text search if it doesn't exist.
func (s *SQLiteStore) initFTS() error {
	_, err := s.db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS visits_fts USING fts5(
			visit_id UNINDEXED,
			artifact_id UNINDEXED,
			title,
			url,
			tokenize='unicode61'
		)
	`)
	return err
}

// loadExclusions loads domain and regex exclusion rules from the database.
func (s *SQLiteStore) loadExclusions() error {
	rows, err := s.db.Query("SELECT rule_type, rule_value FROM exclusions")
	if err != nil {
		return err
	}
	defer rows.Close()

	s.domainExclusions = nil
	s.regexExclusions = nil
	for rows.Next() {
		var ruleType, ruleValue string
		if err := rows.Scan(&ruleType, &ruleValue); err != nil {
			return err
		}
		switch ruleType {
		case "domain":
			s.domainExclusions = append(s.domainExclusions, strings.ToLower(ruleValue))
		case "regex":
			re, err := regexp.Compile(ruleValue)
			if err != nil {
				continue // skip invalid regex
			}
			s.regexExclusions = append(s.regexExclusions, re)
		}
	}

	return rows.Err()
}

// SeedExclusions records domain rules (typically the configured denylist)
// and reloads the rule cache. Existing rules are left alone. It returns the
// number of rules added.
func (s *SQLiteStore) SeedExclusions(ctx context.Context, domains []string) (int64, error) {
	var added int64
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		res, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO exclusions (rule_type, rule_value, reason, is_default) VALUES ('domain', ?, 'denylist', 1)`,
			d,
		)
		if err != nil {
			return added, fmt.Errorf("seed exclusion %s: %w", d, err)
		}
		n, _ := res.RowsAffected()
		added += n
	}
	if err := s.loadExclusions(); err != nil {
		return added, fmt.Errorf("load exclusions: %w", err)
	}
	return added, nil
}

// IsExcluded reports whether visits to domain are kept out of the archive.
// A domain rule also covers its subdomains.
func (s *SQLiteStore) IsExcluded(domain string) bool {
	if domain == "" {
		return false
	}
	for _, d := range s.domainExclusions {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	for _, re := range s.regexExclusions {
		if re.MatchString(domain) {
			return true
		}
	}
	return false
}

// ftsQuery converts a user search string into a valid FTS5 query.
// Each word becomes a quoted prefix token joined with OR.
func ftsQuery(input string) string {
	words := strings.Fields(input)
	if len(words) == 0 {
		return ""
	}
	var parts []string
	for _, w := range words {
		w = strings.ReplaceAll(w, `"`, `""`)
		parts = append(parts, `"`+w+`"*`)
	}
	return strings.Join(parts, " OR ")
}

func formatTS(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(tsLayout)
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		tsLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// SearchVisits queries archived visits with optional filters.
func (s *SQLiteStore) SearchVisits(ctx context.Context, q SearchQuery) ([]VisitHit, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}

	var clauses []string
	var args []interface{}

	base := `
		SELECT v.artifact_id, a.browser, v.url, v.title, v.domain, v.visit_time, v.visit_count
		FROM visits v
		JOIN artifacts a ON a.id = v.artifact_id
	`
	order := " ORDER BY v.visit_time DESC, v.artifact_id, v.seq"

	if fts := ftsQuery(q.Query); fts != "" {
		base = `
			SELECT v.artifact_id, a.browser, v.url, v.title, v.domain, v.visit_time, v.visit_count
			FROM visits_fts f
			JOIN visits v ON v.id = f.visit_id
			JOIN artifacts a ON a.id = v.artifact_id
		`
		clauses = append(clauses, "visits_fts MATCH ?")
		args = append(args, fts)
		order = " ORDER BY f.rank, v.visit_time DESC"
	}

	if q.Domain != "" {
		clauses = append(clauses, "v.domain = ?")
		args = append(args, strings.ToLower(q.Domain))
	}
	if q.ArtifactID != "" {
		clauses = append(clauses, "v.artifact_id = ?")
		args = append(args, q.ArtifactID)
	}
	if !q.Since.IsZero() {
		clauses = append(clauses, "v.visit_time != '' AND v.visit_time >= ?")
		args = append(args, formatTS(q.Since))
	}
	if !q.Until.IsZero() {
		clauses = append(clauses, "v.visit_time != '' AND v.visit_time <= ?")
		args = append(args, formatTS(q.Until))
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	args = append(args, q.Limit, q.Offset)
	rows, err := s.db.QueryContext(ctx, base+where+order+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, fmt.Errorf("query visits: %w", err)
	}
	defer rows.Close()

	hits := []VisitHit{}
	for rows.Next() {
		var h VisitHit
		var ts string
		if err := rows.Scan(&h.ArtifactID, &h.Browser, &h.URL, &h.Title, &h.Domain, &ts, &h.VisitCount); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		h.VisitTime, _ = parseTimestamp(ts)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// ListArtifacts returns every archived artifact, most recently processed first.
func (s *SQLiteStore) ListArtifacts(ctx context.Context) ([]ArtifactSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.browser, a.source_name, a.strategy, a.processed_at,
		       (SELECT COUNT(*) FROM visits v WHERE v.artifact_id = a.id),
		       (SELECT COUNT(*) FROM downloads d WHERE d.artifact_id = a.id),
		       (SELECT COUNT(*) FROM downloads d WHERE d.artifact_id = a.id
		          AND EXISTS (SELECT 1 FROM download_sources ds WHERE ds.download_id = d.id))
		FROM artifacts a
		ORDER BY a.processed_at DESC, a.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	out := []ArtifactSummary{}
	for rows.Next() {
		var a ArtifactSummary
		var ts string
		if err := rows.Scan(&a.ID, &a.Browser, &a.SourceName, &a.Strategy, &ts,
			&a.VisitCount, &a.DownloadCount, &a.CorrelatedCount); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.ProcessedAt, _ = parseTimestamp(ts)
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteArtifact removes an artifact and, by cascade, all its rows.
func (s *SQLiteStore) DeleteArtifact(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM visits_fts WHERE artifact_id = ?", id); err != nil {
		return fmt.Errorf("delete FTS entries: %w", err)
	}

	res, err := tx.StmtContext(ctx, s.deleteArtifact).ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("artifact %s: %w", id, ErrNotFound)
	}

	if err := s.writeAudit(ctx, tx, "delete", "", id); err != nil {
		return err
	}
	return tx.Commit()
}

// PruneExpired deletes artifacts processed before olderThan and returns how
// many were removed.
func (s *SQLiteStore) PruneExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	cutoff := formatTS(olderThan)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Clean FTS entries first
	_, err = tx.ExecContext(ctx,
		`DELETE FROM visits_fts WHERE artifact_id IN (
			SELECT id FROM artifacts WHERE processed_at < ?
		)`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("prune FTS: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM artifacts WHERE processed_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune artifacts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if n > 0 {
		if err := s.writeAudit(ctx, tx, "prune", fmt.Sprintf("%d artifacts before %s", n, cutoff), ""); err != nil {
			return 0, err
		}
	}
	return n, tx.Commit()
}

// CountExpired reports how many artifacts PruneExpired would remove.
func (s *SQLiteStore) CountExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM artifacts WHERE processed_at < ?", formatTS(olderThan),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count expired: %w", err)
	}
	return n, nil
}

// PurgeAll deletes every archived artifact. Exclusion rules are kept.
func (s *SQLiteStore) PurgeAll(ctx context.Context) error {
	stmts := []string{
		"DROP TABLE IF EXISTS visits_fts",
		"DELETE FROM download_sources",
		"DELETE FROM downloads",
		"DELETE FROM visits",
		"DELETE FROM artifacts",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("purge (%s): %w", stmt, err)
		}
	}
	// Recreate FTS table
	if err := s.initFTS(); err != nil {
		return fmt.Errorf("recreate FTS: %w", err)
	}
	return s.writeAudit(ctx, nil, "purge", "all artifacts", "")
}

// GetStats returns aggregate statistics about the archive.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		TopDomains: []DomainCount{},
		MatchTypes: []MatchTypeCount{},
		Browsers:   []BrowserCount{},
	}

	counts := []struct {
		query string
		dst   *int64
	}{
		{"SELECT COUNT(*) FROM artifacts", &stats.TotalArtifacts},
		{"SELECT COUNT(*) FROM visits", &stats.TotalVisits},
		{"SELECT COUNT(*) FROM downloads", &stats.TotalDownloads},
		{"SELECT COUNT(DISTINCT download_id) FROM download_sources", &stats.CorrelatedDownloads},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("count (%s): %w", c.query, err)
		}
	}

	// Oldest and newest (handle empty archive and undated visits)
	var oldest, newest sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT MIN(visit_time), MAX(visit_time) FROM visits WHERE visit_time != ''",
	).Scan(&oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("visit time range: %w", err)
	}
	if oldest.Valid {
		stats.OldestVisit, _ = parseTimestamp(oldest.String)
	}
	if newest.Valid {
		stats.NewestVisit, _ = parseTimestamp(newest.String)
	}

	err = s.scanPairs(ctx,
		"SELECT domain, COUNT(*) AS cnt FROM visits WHERE domain != '' GROUP BY domain ORDER BY cnt DESC, domain LIMIT 10",
		func(name string, n int64) { stats.TopDomains = append(stats.TopDomains, DomainCount{Domain: name, Count: n}) },
	)
	if err != nil {
		return nil, fmt.Errorf("top domains: %w", err)
	}

	err = s.scanPairs(ctx,
		"SELECT match_type, COUNT(*) AS cnt FROM download_sources GROUP BY match_type ORDER BY cnt DESC, match_type",
		func(name string, n int64) { stats.MatchTypes = append(stats.MatchTypes, MatchTypeCount{MatchType: name, Count: n}) },
	)
	if err != nil {
		return nil, fmt.Errorf("match types: %w", err)
	}

	err = s.scanPairs(ctx,
		"SELECT browser, COUNT(*) AS cnt FROM artifacts GROUP BY browser ORDER BY cnt DESC, browser",
		func(name string, n int64) { stats.Browsers = append(stats.Browsers, BrowserCount{Browser: name, Count: n}) },
	)
	if err != nil {
		return nil, fmt.Errorf("browsers: %w", err)
	}

	return stats, nil
}

func (s *SQLiteStore) scanPairs(ctx context.Context, query string, fn func(string, int64)) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return err
		}
		fn(name, n)
	}
	return rows.Err()
}

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	Action     string    `json:"action"`
	Detail     string    `json:"detail"`
	ArtifactID string    `json:"artifact_id,omitempty"`
	Time       time.Time `json:"ts"`
}

// RecentAudit returns the newest audit entries, newest first.
func (s *SQLiteStore) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT action, detail, COALESCE(artifact_id, ''), ts FROM audit_log ORDER BY id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	out := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		var ts string
		if err := rows.Scan(&e.Action, &e.Detail, &e.ArtifactID, &ts); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Time, _ = parseTimestamp(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// writeAudit records an action when auditing is on. tx may be nil.
func (s *SQLiteStore) writeAudit(ctx context.Context, tx *sql.Tx, action, detail, artifactID string) error {
	if !s.audit {
		return nil
	}
	var id interface{}
	if artifactID != "" {
		id = artifactID
	}
	stmt := s.insertAudit
	if tx != nil {
		stmt = tx.StmtContext(ctx, s.insertAudit)
	}
	if _, err := stmt.ExecContext(ctx, action, detail, id); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// Close releases all prepared statements. The underlying *sql.DB is only
// closed when the store was created by Open.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{s.getArtifact, s.deleteArtifact, s.insertAudit}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
