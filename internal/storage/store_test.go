package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/histlens/internal/analysis"
	"github.com/runnerr0/histlens/internal/artifact"
	"github.com/runnerr0/histlens/internal/correlate"
	"github.com/runnerr0/histlens/internal/syncinfo"
	"github.com/runnerr0/histlens/internal/timeconv"
)

// openTestStore creates a migrated in-memory Store for testing.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(context.Background(), ":memory:", OpenOptions{Audit: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(minutesBefore int) timeconv.Instant {
	return timeconv.At(base.Add(-time.Duration(minutesBefore) * time.Minute))
}

// testBundle builds a small processed artifact: three visits, two downloads
// (one correlated, one without sources) and an account.
func testBundle(id string) *analysis.Bundle {
	visits := []artifact.VisitRecord{
		{URL: "https://go.dev/doc", Title: "Go Programming Docs", Domain: "go.dev", VisitTime: at(30), VisitCount: 3},
		{URL: "https://example.com/tools.zip", Title: "Tools", Domain: "example.com", VisitTime: at(10), VisitCount: 1},
		{URL: "https://chase.com/login", Title: "Bank", Domain: "chase.com", VisitTime: at(5), VisitCount: 7},
	}
	downloads := []artifact.DownloadRecord{
		{Filename: "/tmp/tools.zip", SourceURL: "https://example.com/dl/tools.zip", DownloadTime: at(0),
			FileSize: 1024, MimeType: "application/zip", Status: artifact.StatusCompleted},
		{Filename: "orphan.bin", Status: artifact.StatusFailed},
	}
	info := syncinfo.Empty()
	info.AccountInfo = syncinfo.AccountInfo{Email: "user@example.com", Name: "user"}
	info.SyncSettings.Enabled = true

	return &analysis.Bundle{
		ID:              id,
		Family:          artifact.Chromium,
		SourceName:      "History",
		ProcessedAt:     base,
		Strategy:        "chromium-schema",
		Visits:          visits,
		Downloads:       downloads,
		DownloadSources: correlate.Correlate(visits, downloads),
		SyncInfo:        info,
		Warnings:        []string{"downloads table missing column"},
	}
}

// --- SaveBundle + LoadBundle roundtrip ---

func TestSaveBundle_LoadBundle_Roundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	want := testBundle("a1")
	res, err := store.SaveBundle(ctx, want)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Visits)
	assert.Equal(t, 2, res.Downloads)
	assert.Equal(t, 3, res.Sources)
	assert.False(t, res.Replaced)

	got, err := store.LoadBundle(ctx, "a1")
	require.NoError(t, err)

	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, artifact.Chromium, got.Family)
	assert.Equal(t, "History", got.SourceName)
	assert.Equal(t, "chromium-schema", got.Strategy)
	assert.True(t, base.Equal(got.ProcessedAt))
	assert.Equal(t, want.Warnings, got.Warnings)

	require.Len(t, got.Visits, 3)
	for i := range want.Visits {
		assert.Equal(t, want.Visits[i].URL, got.Visits[i].URL)
		assert.Equal(t, want.Visits[i].VisitCount, got.Visits[i].VisitCount)
		assert.True(t, want.Visits[i].VisitTime.Equal(got.Visits[i].VisitTime.Time))
	}

	require.Len(t, got.Downloads, 2)
	assert.Equal(t, int64(1024), got.Downloads[0].FileSize)
	assert.Equal(t, artifact.StatusCompleted, got.Downloads[0].Status)
	assert.True(t, got.Downloads[1].DownloadTime.IsEmpty())

	require.Len(t, got.DownloadSources, 2)
	assert.Equal(t, "/tmp/tools.zip", got.DownloadSources[0].Filename)
	require.Len(t, got.DownloadSources[0].Sources, len(want.DownloadSources[0].Sources))
	for i, c := range want.DownloadSources[0].Sources {
		assert.Equal(t, c.URL, got.DownloadSources[0].Sources[i].URL)
		assert.Equal(t, c.MatchType, got.DownloadSources[0].Sources[i].MatchType)
	}
	assert.NotNil(t, got.DownloadSources[1].Sources)
	assert.Empty(t, got.DownloadSources[1].Sources)

	assert.Equal(t, "user@example.com", got.SyncInfo.AccountInfo.Email)
	assert.True(t, got.SyncInfo.SyncSettings.Enabled)
	assert.Equal(t, 1, got.CorrelatedCount())
}

func TestSaveBundle_ReplacesExisting(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.SaveBundle(ctx, testBundle("a1"))
	require.NoError(t, err)

	b := testBundle("a1")
	b.Visits = b.Visits[:1]
	res, err := store.SaveBundle(ctx, b)
	require.NoError(t, err)
	assert.True(t, res.Replaced)

	got, err := store.LoadBundle(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, got.Visits, 1)

	// FTS rows of the replaced copy are gone too.
	hits, err := store.SearchVisits(ctx, SearchQuery{Query: "tools"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSaveBundle_RequiresID(t *testing.T) {
	store := openTestStore(t)
	_, err := store.SaveBundle(context.Background(), testBundle(""))
	assert.Error(t, err)
}

func TestLoadBundle_NotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.LoadBundle(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// --- Exclusions ---

func TestSaveBundle_SkipsExcludedDomains(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	added, err := store.SeedExclusions(ctx, []string{"chase.com", " ", "Example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), added)

	res, err := store.SaveBundle(ctx, testBundle("a1"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Visits)
	assert.Equal(t, 2, res.ExcludedVisits)
	assert.Equal(t, 2, res.Downloads, "downloads are always kept")
	assert.Greater(t, res.ExcludedSources, 0)

	got, err := store.LoadBundle(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, got.Visits, 1)
	assert.Equal(t, "go.dev", got.Visits[0].Domain)
	for _, c := range got.DownloadSources[0].Sources {
		assert.NotContains(t, c.URL, "example.com")
	}
}

func TestSeedExclusions_Idempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.SeedExclusions(ctx, []string{"chase.com"})
	require.NoError(t, err)
	added, err := store.SeedExclusions(ctx, []string{"chase.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), added)
}

func TestIsExcluded(t *testing.T) {
	store := openTestStore(t)
	_, err := store.SeedExclusions(context.Background(), []string{"chase.com"})
	require.NoError(t, err)

	tests := []struct {
		domain string
		want   bool
	}{
		{"chase.com", true},
		{"secure.chase.com", true},
		{"notchase.com", false},
		{"site.xxx", true},
		{"", false},
		{"go.dev", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, store.IsExcluded(tt.domain), tt.domain)
	}
}

// --- SearchVisits ---

func TestSearchVisits_ByQuery(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.SaveBundle(ctx, testBundle("a1"))
	require.NoError(t, err)

	hits, err := store.SearchVisits(ctx, SearchQuery{Query: "prog"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "https://go.dev/doc", hits[0].URL)
	assert.Equal(t, "a1", hits[0].ArtifactID)
	assert.Equal(t, "chromium", hits[0].Browser)
	assert.True(t, at(30).Equal(hits[0].VisitTime))
}

func TestSearchVisits_QuotesAreSafe(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.SaveBundle(ctx, testBundle("a1"))
	require.NoError(t, err)

	_, err = store.SearchVisits(ctx, SearchQuery{Query: `"go`})
	assert.NoError(t, err)
}

func TestSearchVisits_ByDomain(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.SaveBundle(ctx, testBundle("a1"))
	require.NoError(t, err)

	hits, err := store.SearchVisits(ctx, SearchQuery{Domain: "Example.com"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Tools", hits[0].Title)
}

func TestSearchVisits_ByArtifactAndTimeRange(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.SaveBundle(ctx, testBundle("a1"))
	require.NoError(t, err)
	_, err = store.SaveBundle(ctx, testBundle("a2"))
	require.NoError(t, err)

	hits, err := store.SearchVisits(ctx, SearchQuery{ArtifactID: "a2"})
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	hits, err = store.SearchVisits(ctx, SearchQuery{
		ArtifactID: "a1",
		Since:      at(20).Time,
		Until:      at(0).Time,
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	// newest first
	assert.Equal(t, "chase.com", hits[0].Domain)
	assert.Equal(t, "example.com", hits[1].Domain)
}

func TestSearchVisits_Pagination(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.SaveBundle(ctx, testBundle("a1"))
	require.NoError(t, err)

	page1, err := store.SearchVisits(ctx, SearchQuery{Limit: 2})
	require.NoError(t, err)
	page2, err := store.SearchVisits(ctx, SearchQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)

	assert.Len(t, page1, 2)
	assert.Len(t, page2, 1)
	assert.NotEqual(t, page1[0].URL, page2[0].URL)
}

func TestSearchVisits_EmptyArchive(t *testing.T) {
	store := openTestStore(t)
	hits, err := store.SearchVisits(context.Background(), SearchQuery{})
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

// --- List / Delete / Prune / Purge ---

func TestListArtifacts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	older := testBundle("old")
	older.ProcessedAt = base.Add(-48 * time.Hour)
	_, err := store.SaveBundle(ctx, older)
	require.NoError(t, err)
	_, err = store.SaveBundle(ctx, testBundle("new"))
	require.NoError(t, err)

	list, err := store.ListArtifacts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, int64(3), list[0].VisitCount)
	assert.Equal(t, int64(2), list[0].DownloadCount)
	assert.Equal(t, int64(1), list[0].CorrelatedCount)
	assert.True(t, base.Equal(list[0].ProcessedAt))
}

func TestDeleteArtifact(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.SaveBundle(ctx, testBundle("a1"))
	require.NoError(t, err)

	require.NoError(t, store.DeleteArtifact(ctx, "a1"))

	_, err = store.LoadBundle(ctx, "a1")
	assert.True(t, errors.Is(err, ErrNotFound))

	hits, err := store.SearchVisits(ctx, SearchQuery{Query: "go"})
	require.NoError(t, err)
	assert.Empty(t, hits)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalDownloads, "downloads cascade")
}

func TestDeleteArtifact_NotFound(t *testing.T) {
	store := openTestStore(t)
	err := store.DeleteArtifact(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPruneExpired(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := testBundle("old")
	old.ProcessedAt = base.Add(-40 * 24 * time.Hour)
	_, err := store.SaveBundle(ctx, old)
	require.NoError(t, err)
	_, err = store.SaveBundle(ctx, testBundle("fresh"))
	require.NoError(t, err)

	cutoff := base.Add(-30 * 24 * time.Hour)
	n, err := store.CountExpired(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.PruneExpired(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := store.ListArtifacts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "fresh", list[0].ID)

	hits, err := store.SearchVisits(ctx, SearchQuery{Query: "tools"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "fresh", hits[0].ArtifactID)
}

func TestPurgeAll(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.SaveBundle(ctx, testBundle("a1"))
	require.NoError(t, err)
	_, err = store.SeedExclusions(ctx, []string{"chase.com"})
	require.NoError(t, err)

	require.NoError(t, store.PurgeAll(ctx))

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalArtifacts)
	assert.Equal(t, int64(0), stats.TotalVisits)
	assert.True(t, store.IsExcluded("chase.com"), "exclusions survive a purge")

	// FTS still works after being recreated.
	_, err = store.SaveBundle(ctx, testBundle("a2"))
	require.NoError(t, err)
	hits, err := store.SearchVisits(ctx, SearchQuery{Query: "docs"})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

// --- Stats ---

func TestGetStats_EmptyDB(t *testing.T) {
	store := openTestStore(t)
	stats, err := store.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalArtifacts)
	assert.True(t, stats.OldestVisit.IsZero())
	assert.NotNil(t, stats.TopDomains)
	assert.NotNil(t, stats.MatchTypes)
}

func TestGetStats_WithData(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.SaveBundle(ctx, testBundle("a1"))
	require.NoError(t, err)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalArtifacts)
	assert.Equal(t, int64(3), stats.TotalVisits)
	assert.Equal(t, int64(2), stats.TotalDownloads)
	assert.Equal(t, int64(1), stats.CorrelatedDownloads)
	assert.True(t, at(30).Equal(stats.OldestVisit))
	assert.True(t, at(5).Equal(stats.NewestVisit))
	assert.Len(t, stats.TopDomains, 3)
	require.Len(t, stats.Browsers, 1)
	assert.Equal(t, "chromium", stats.Browsers[0].Browser)

	var total int64
	for _, mt := range stats.MatchTypes {
		total += mt.Count
	}
	assert.Equal(t, int64(3), total)
}

// --- Audit ---

func TestAuditLog(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.SaveBundle(ctx, testBundle("a1"))
	require.NoError(t, err)
	require.NoError(t, store.DeleteArtifact(ctx, "a1"))

	entries, err := store.RecentAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "delete", entries[0].Action)
	assert.Equal(t, "save", entries[1].Action)
	assert.Equal(t, "a1", entries[1].ArtifactID)
	assert.False(t, entries[1].Time.IsZero())
}

func TestAuditLog_Disabled(t *testing.T) {
	store := openTestStore(t)
	store.SetAudit(false)
	ctx := context.Background()
	_, err := store.SaveBundle(ctx, testBundle("a1"))
	require.NoError(t, err)

	entries, err := store.RecentAudit(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// --- Open / Close ---

func TestOpen_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "archive.db")
	ctx := context.Background()

	store, err := Open(ctx, path, OpenOptions{JournalMode: "wal"})
	require.NoError(t, err)
	_, err = store.SaveBundle(ctx, testBundle("a1"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path, OpenOptions{})
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.LoadBundle(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, got.Visits, 3)
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, "", ftsQuery("   "))
	assert.Equal(t, `"go"* OR "dev"*`, ftsQuery("go dev"))
	assert.Equal(t, `"a""b"*`, ftsQuery(`a"b`))
}
