package cli

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/histlens/internal/analysis"
	"github.com/runnerr0/histlens/internal/artifact"
	"github.com/runnerr0/histlens/internal/correlate"
	"github.com/runnerr0/histlens/internal/storage"
	"github.com/runnerr0/histlens/internal/syncinfo"
	"github.com/runnerr0/histlens/internal/timeconv"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// testGlobals points --config and --db-path into a temp dir.
func testGlobals(t *testing.T) *GlobalFlags {
	t.Helper()
	dir := t.TempDir()
	return &GlobalFlags{
		Config: filepath.Join(dir, "config.yaml"),
		DBPath: filepath.Join(dir, "archive.db"),
	}
}

// globalArgs renders g as command-line flags for RunWithArgs.
func globalArgs(g *GlobalFlags) []string {
	return []string{"--config", g.Config, "--db-path", g.DBPath}
}

// openTestStore creates a migrated in-memory archive.
func openTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.Open(context.Background(), ":memory:", storage.OpenOptions{Audit: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// writeChromiumHistory writes a small Chromium History database to dir:
// two docs.example.com visits, one news.org visit and a download of
// tool.zip from docs.example.com a minute after the last visit.
func writeChromiumHistory(t *testing.T, dir string, downloadAt time.Time) string {
	t.Helper()
	path := filepath.Join(dir, "History")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)

	wk := func(d time.Duration) int64 { return timeconv.WebKit.Raw(timeconv.At(downloadAt.Add(d))) }
	stmts := []string{
		`CREATE TABLE urls (id INTEGER PRIMARY KEY, url TEXT, title TEXT, visit_count INTEGER, last_visit_time INTEGER)`,
		`CREATE TABLE visits (id INTEGER PRIMARY KEY, url INTEGER, visit_time INTEGER)`,
		`CREATE TABLE downloads (id INTEGER PRIMARY KEY, target_path TEXT, start_time INTEGER, state INTEGER, tab_url TEXT, received_bytes INTEGER)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	pages := []struct {
		url, title string
	}{
		{"https://docs.example.com/install", "Install guide"},
		{"https://docs.example.com/tools", "Tools index"},
		{"https://news.org/today", "Morning news"},
	}
	for i, p := range pages {
		_, err := db.Exec(`INSERT INTO urls (id, url, title, visit_count) VALUES (?, ?, ?, 1)`, i+1, p.url, p.title)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO visits (id, url, visit_time) VALUES (?, ?, ?)`, i+1, i+1, wk(-time.Duration(i+1)*time.Minute))
		require.NoError(t, err)
	}
	_, err = db.Exec(`INSERT INTO downloads (id, target_path, start_time, state, tab_url, received_bytes) VALUES (1, '/dl/tool.zip', ?, 1, 'https://docs.example.com/tool.zip', 2048)`, wk(0))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return path
}

// seedBundle archives a correlated bundle with the given processing time.
func seedBundle(t *testing.T, store *storage.SQLiteStore, id string, processedAt time.Time) *analysis.Bundle {
	t.Helper()
	at := func(d time.Duration) timeconv.Instant { return timeconv.At(processedAt.Add(d)) }

	visits := []artifact.VisitRecord{
		{URL: "https://vendor.com/" + id, Title: "Vendor page " + id, Domain: "vendor.com", VisitTime: at(-10 * time.Minute), VisitCount: 1},
		{URL: "https://blog.net/post", Title: "A blog post", Domain: "blog.net", VisitTime: at(-5 * time.Minute), VisitCount: 2},
	}
	downloads := []artifact.DownloadRecord{
		{Filename: "setup.exe", SourceURL: "https://vendor.com/setup.exe", DownloadTime: at(0), FileSize: 100, Status: artifact.StatusCompleted},
	}
	b := &analysis.Bundle{
		ID:              id,
		Family:          artifact.Chromium,
		SourceName:      "History",
		ProcessedAt:     processedAt,
		Strategy:        "chromium(test)",
		Visits:          visits,
		Downloads:       downloads,
		DownloadSources: correlate.Correlate(visits, downloads),
		SyncInfo:        syncinfo.Empty(),
	}
	_, err := store.SaveBundle(context.Background(), b)
	require.NoError(t, err, fmt.Sprintf("seed %s", id))
	return b
}
