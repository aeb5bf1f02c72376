package artifact

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/histlens/internal/timeconv"
)

// fixtureBase is the reference instant for all fixture rows.
var fixtureBase = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func webkit(t time.Time) int64 { return timeconv.WebKit.Raw(timeconv.At(t)) }
func prtime(t time.Time) int64 { return timeconv.UnixMicro.Raw(timeconv.At(t)) }

// createDB creates a SQLite file under t.TempDir() and applies stmts.
func createDB(t *testing.T, name string, stmts ...string) (string, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return path, db
}

var chromiumSchema = []string{
	`CREATE TABLE urls (id INTEGER PRIMARY KEY, url LONGVARCHAR, title LONGVARCHAR,
		visit_count INTEGER DEFAULT 0, typed_count INTEGER DEFAULT 0, last_visit_time INTEGER)`,
	`CREATE TABLE visits (id INTEGER PRIMARY KEY, url INTEGER NOT NULL, visit_time INTEGER NOT NULL,
		from_visit INTEGER, transition INTEGER DEFAULT 0)`,
}

var chromiumDownloadsSchema = []string{
	`CREATE TABLE downloads (id INTEGER PRIMARY KEY, guid VARCHAR, current_path LONGVARCHAR,
		target_path LONGVARCHAR, start_time INTEGER NOT NULL, received_bytes INTEGER,
		total_bytes INTEGER, state INTEGER, referrer VARCHAR, tab_url VARCHAR, mime_type VARCHAR)`,
	`CREATE TABLE downloads_url_chains (id INTEGER NOT NULL, chain_index INTEGER NOT NULL,
		url LONGVARCHAR NOT NULL, PRIMARY KEY (id, chain_index))`,
	`CREATE TABLE visit_source (id INTEGER PRIMARY KEY, source INTEGER NOT NULL)`,
}

// seedChromium inserts three urls with one visit each.
func seedChromium(t *testing.T, db *sql.DB) {
	t.Helper()
	exec := func(q string, args ...interface{}) {
		_, err := db.Exec(q, args...)
		require.NoError(t, err, q)
	}

	exec(`INSERT INTO urls (id, url, title, visit_count, last_visit_time) VALUES (1, 'https://www.example.com/releases', 'Releases', 4, ?)`,
		webkit(fixtureBase.Add(-5*time.Minute)))
	exec(`INSERT INTO urls (id, url, title, visit_count, last_visit_time) VALUES (2, 'https://cdn.other.net/tool.zip', NULL, 1, ?)`,
		webkit(fixtureBase.Add(-2*time.Minute)))
	exec(`INSERT INTO urls (id, url, title, visit_count, last_visit_time) VALUES (3, 'https://news.site/', 'News', 9, ?)`,
		webkit(fixtureBase.Add(-3*time.Hour)))

	exec(`INSERT INTO visits (id, url, visit_time) VALUES (10, 1, ?)`, webkit(fixtureBase.Add(-5*time.Minute)))
	exec(`INSERT INTO visits (id, url, visit_time) VALUES (11, 2, ?)`, webkit(fixtureBase.Add(-2*time.Minute)))
	exec(`INSERT INTO visits (id, url, visit_time) VALUES (12, 3, ?)`, webkit(fixtureBase.Add(-3*time.Hour)))
}

func seedChromiumDownloads(t *testing.T, db *sql.DB) {
	t.Helper()
	exec := func(q string, args ...interface{}) {
		_, err := db.Exec(q, args...)
		require.NoError(t, err, q)
	}

	exec(`INSERT INTO downloads (id, current_path, target_path, start_time, received_bytes, state, referrer, tab_url, mime_type)
		VALUES (1, '/tmp/x.crdownload', '/home/me/Downloads/tool.zip', ?, 2048, 1, 'https://example.com/releases', 'https://example.com/releases', 'application/zip')`,
		webkit(fixtureBase))
	exec(`INSERT INTO downloads (id, current_path, target_path, start_time, received_bytes, state, referrer, tab_url, mime_type)
		VALUES (2, '', 'C:\Users\me\Downloads\report.pdf', ?, NULL, 2, NULL, 'https://docs.example.org/', NULL)`,
		webkit(fixtureBase.Add(-time.Hour)))
	exec(`INSERT INTO downloads_url_chains (id, chain_index, url) VALUES (1, 0, 'https://example.com/download/tool.zip')`)
	exec(`INSERT INTO downloads_url_chains (id, chain_index, url) VALUES (1, 1, 'https://cdn.other.net/tool.zip')`)
	exec(`INSERT INTO downloads_url_chains (id, chain_index, url) VALUES (2, 0, 'https://docs.example.org/report.pdf')`)
	exec(`INSERT INTO visit_source (id, source) VALUES (10, 0)`)
	exec(`INSERT INTO visit_source (id, source) VALUES (12, 1)`)
}

var firefoxSchema = []string{
	`CREATE TABLE moz_places (id INTEGER PRIMARY KEY, url LONGVARCHAR, title LONGVARCHAR,
		rev_host LONGVARCHAR, visit_count INTEGER DEFAULT 0, last_visit_date INTEGER)`,
	`CREATE TABLE moz_historyvisits (id INTEGER PRIMARY KEY, from_visit INTEGER, place_id INTEGER,
		visit_date INTEGER, visit_type INTEGER, session INTEGER)`,
	`CREATE TABLE moz_anno_attributes (id INTEGER PRIMARY KEY, name VARCHAR(32) UNIQUE NOT NULL)`,
	`CREATE TABLE moz_annos (id INTEGER PRIMARY KEY, place_id INTEGER NOT NULL, anno_attribute_id INTEGER,
		content LONGVARCHAR, flags INTEGER DEFAULT 0, expiration INTEGER DEFAULT 0, type INTEGER DEFAULT 0,
		dateAdded INTEGER DEFAULT 0, lastModified INTEGER DEFAULT 0)`,
}

func seedFirefox(t *testing.T, db *sql.DB) {
	t.Helper()
	exec := func(q string, args ...interface{}) {
		_, err := db.Exec(q, args...)
		require.NoError(t, err, q)
	}

	exec(`INSERT INTO moz_places (id, url, title, visit_count) VALUES (1, 'https://addons.mozilla.org/en-US/firefox/', 'Add-ons', 3)`)
	exec(`INSERT INTO moz_places (id, url, title, visit_count) VALUES (2, 'https://ftp.mozilla.org/pub/file.tar.bz2', NULL, 1)`)
	exec(`INSERT INTO moz_historyvisits (id, place_id, visit_date) VALUES (1, 1, ?)`, prtime(fixtureBase.Add(-10*time.Minute)))
	exec(`INSERT INTO moz_historyvisits (id, place_id, visit_date) VALUES (2, 1, ?)`, prtime(fixtureBase.Add(-20*time.Minute)))
	exec(`INSERT INTO moz_historyvisits (id, place_id, visit_date) VALUES (3, 2, ?)`, prtime(fixtureBase.Add(-1*time.Minute)))

	exec(`INSERT INTO moz_anno_attributes (id, name) VALUES (1, 'downloads/destinationFileURI')`)
	exec(`INSERT INTO moz_anno_attributes (id, name) VALUES (2, 'downloads/metaData')`)
	exec(`INSERT INTO moz_annos (place_id, anno_attribute_id, content, dateAdded) VALUES (2, 1, 'file:///home/me/Downloads/file%20v2.tar.bz2', ?)`,
		prtime(fixtureBase))
	exec(`INSERT INTO moz_annos (place_id, anno_attribute_id, content, dateAdded) VALUES (2, 2, '{"state":3,"endTime":1,"fileSize":4096}', ?)`,
		prtime(fixtureBase))
}
