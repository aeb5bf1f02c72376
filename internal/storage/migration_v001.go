package storage

import "database/sql"

// migrateV001 creates the archive schema: artifacts and their visits,
// downloads and correlated sources, plus exclusions and the audit log.
// Every statement uses IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Tables ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS artifacts (
			id           TEXT PRIMARY KEY,
			browser      TEXT NOT NULL,
			source_name  TEXT NOT NULL DEFAULT '',
			strategy     TEXT NOT NULL DEFAULT '',
			processed_at DATETIME NOT NULL,
			sync_info    TEXT NOT NULL DEFAULT '{}',
			warnings     TEXT NOT NULL DEFAULT '[]',
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS visits (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			artifact_id TEXT NOT NULL REFERENCES artifacts(id) ON DELETE CASCADE,
			seq         INTEGER NOT NULL,
			url         TEXT NOT NULL,
			title       TEXT NOT NULL DEFAULT '',
			domain      TEXT NOT NULL DEFAULT '',
			visit_time  TEXT NOT NULL DEFAULT '',
			visit_count INTEGER NOT NULL DEFAULT 0,
			UNIQUE(artifact_id, seq)
		)`,

		`CREATE TABLE IF NOT EXISTS downloads (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			artifact_id   TEXT NOT NULL REFERENCES artifacts(id) ON DELETE CASCADE,
			seq           INTEGER NOT NULL,
			filename      TEXT NOT NULL DEFAULT '',
			url           TEXT NOT NULL DEFAULT '',
			referrer      TEXT NOT NULL DEFAULT '',
			download_time TEXT NOT NULL DEFAULT '',
			file_size     INTEGER NOT NULL DEFAULT 0,
			mime_type     TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL DEFAULT '',
			UNIQUE(artifact_id, seq)
		)`,

		`CREATE TABLE IF NOT EXISTS download_sources (
			download_id INTEGER NOT NULL REFERENCES downloads(id) ON DELETE CASCADE,
			position    INTEGER NOT NULL,
			url         TEXT NOT NULL,
			title       TEXT NOT NULL DEFAULT '',
			visit_time  TEXT NOT NULL DEFAULT '',
			match_type  TEXT NOT NULL CHECK (match_type IN ('same_domain', 'file_pattern', 'temporal')),
			PRIMARY KEY (download_id, position)
		)`,

		`CREATE TABLE IF NOT EXISTS exclusions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			rule_type  TEXT NOT NULL CHECK (rule_type IN ('domain', 'regex')),
			rule_value TEXT NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			is_default BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(rule_type, rule_value)
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			action      TEXT NOT NULL,
			detail      TEXT NOT NULL DEFAULT '',
			artifact_id TEXT,
			ts          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_artifacts_processed ON artifacts(processed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_artifact     ON visits(artifact_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_domain       ON visits(domain)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_time         ON visits(visit_time)`,
		`CREATE INDEX IF NOT EXISTS idx_downloads_artifact  ON downloads(artifact_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_sources_match_type  ON download_sources(match_type)`,
		`CREATE INDEX IF NOT EXISTS idx_exclusions_rule     ON exclusions(rule_type, rule_value)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_ts        ON audit_log(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_action    ON audit_log(action)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return seedDefaultExclusions(tx)
}

// seedDefaultExclusions inserts regex rules that always apply. Domain rules
// come from the configured denylist, see SQLiteStore.SeedExclusions.
func seedDefaultExclusions(tx *sql.Tx) error {
	defaults := []struct {
		RuleValue string
		Reason    string
	}{
		{`.*\.xxx$`, "Adult content exclusion"},
	}

	const insertSQL = `INSERT OR IGNORE INTO exclusions (rule_type, rule_value, reason, is_default) VALUES ('regex', ?, ?, 1)`

	for _, r := range defaults {
		if _, err := tx.Exec(insertSQL, r.RuleValue, r.Reason); err != nil {
			return err
		}
	}
	return nil
}
