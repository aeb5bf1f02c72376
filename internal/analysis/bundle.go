// Package analysis turns one uploaded history database into a Bundle: its
// visits, downloads, correlated download sources and sync details.
package analysis

import (
	"time"

	"github.com/google/uuid"

	"github.com/runnerr0/histlens/internal/artifact"
	"github.com/runnerr0/histlens/internal/correlate"
	"github.com/runnerr0/histlens/internal/syncinfo"
)

// Bundle is the processed form of one artifact. It is not modified after
// Process returns, so it can be shared between goroutines.
type Bundle struct {
	ID              string                          `json:"file_id"`
	Family          artifact.Family                 `json:"browser_type"`
	SourceName      string                          `json:"source_name"`
	ProcessedAt     time.Time                       `json:"processed_at"`
	Strategy        string                          `json:"strategy"`
	Visits          []artifact.VisitRecord          `json:"visits"`
	Downloads       []artifact.DownloadRecord       `json:"downloads"`
	DownloadSources []correlate.DownloadSourceGroup `json:"download_sources"`
	SyncInfo        syncinfo.Info                   `json:"sync_info"`
	Warnings        []string                        `json:"warnings,omitempty"`
}

// PageResult is one page of a bundle's visits plus its download and sync
// data, as returned to the web client.
type PageResult struct {
	FileID          string                          `json:"file_id"`
	BrowserType     artifact.Family                 `json:"browser_type"`
	TotalEntries    int                             `json:"total_entries"`
	Page            int                             `json:"page"`
	PageSize        int                             `json:"page_size"`
	TotalPages      int                             `json:"total_pages"`
	Entries         []artifact.VisitRecord          `json:"entries"`
	Downloads       []artifact.DownloadRecord       `json:"downloads"`
	DownloadSources []correlate.DownloadSourceGroup `json:"download_sources"`
	SyncInfo        syncinfo.Info                   `json:"sync_info"`
}

// Snapshot returns the full visit history.
func (b *Bundle) Snapshot() artifact.Snapshot {
	return artifact.Snapshot{Visits: b.Visits}
}

// Page returns the given page of visits; see artifact.Paginate.
func (b *Bundle) Page(page, size int) PageResult {
	p := b.Snapshot().Page(page, size)
	return PageResult{
		FileID:          b.ID,
		BrowserType:     b.Family,
		TotalEntries:    p.TotalEntries,
		Page:            p.Page,
		PageSize:        p.PageSize,
		TotalPages:      p.TotalPages,
		Entries:         p.Entries,
		Downloads:       nonNilDownloads(b.Downloads),
		DownloadSources: nonNilGroups(b.DownloadSources),
		SyncInfo:        b.SyncInfo,
	}
}

// CorrelatedCount is the number of downloads with at least one source.
func (b *Bundle) CorrelatedCount() int {
	n := 0
	for _, g := range b.DownloadSources {
		if len(g.Sources) > 0 {
			n++
		}
	}
	return n
}

// NewID returns a fresh opaque artifact identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id has the shape NewID produces.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nonNilDownloads(d []artifact.DownloadRecord) []artifact.DownloadRecord {
	if d == nil {
		return []artifact.DownloadRecord{}
	}
	return d
}

func nonNilGroups(g []correlate.DownloadSourceGroup) []correlate.DownloadSourceGroup {
	if g == nil {
		return []correlate.DownloadSourceGroup{}
	}
	return g
}
