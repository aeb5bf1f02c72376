package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when an artifact id is not in the archive.
var ErrNotFound = errors.New("not found")

// ArtifactSummary describes one archived artifact without its rows.
type ArtifactSummary struct {
	ID              string    `json:"id"`
	Browser         string    `json:"browser"`
	SourceName      string    `json:"source_name"`
	Strategy        string    `json:"strategy"`
	ProcessedAt     time.Time `json:"processed_at"`
	VisitCount      int64     `json:"visit_count"`
	DownloadCount   int64     `json:"download_count"`
	CorrelatedCount int64     `json:"correlated_count"`
}

// SaveResult reports what SaveBundle wrote.
type SaveResult struct {
	Visits          int
	ExcludedVisits  int
	Downloads       int
	Sources         int
	ExcludedSources int
	Replaced        bool
}

// VisitHit is an archived visit returned by SearchVisits.
type VisitHit struct {
	ArtifactID string    `json:"artifact_id"`
	Browser    string    `json:"browser"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Domain     string    `json:"domain"`
	VisitTime  time.Time `json:"visit_time"`
	VisitCount int       `json:"visit_count"`
}

// SearchQuery defines filters for searching archived visits.
type SearchQuery struct {
	Query      string
	Domain     string
	ArtifactID string
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int
}

// Stats holds aggregate statistics about the archive.
type Stats struct {
	TotalArtifacts      int64            `json:"total_artifacts"`
	TotalVisits         int64            `json:"total_visits"`
	TotalDownloads      int64            `json:"total_downloads"`
	CorrelatedDownloads int64            `json:"correlated_downloads"`
	OldestVisit         time.Time        `json:"oldest_visit"`
	NewestVisit         time.Time        `json:"newest_visit"`
	TopDomains          []DomainCount    `json:"top_domains"`
	MatchTypes          []MatchTypeCount `json:"match_types"`
	Browsers            []BrowserCount   `json:"browsers"`
}

// DomainCount pairs a domain with its visit count.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int64  `json:"count"`
}

// MatchTypeCount counts archived source candidates per match type.
type MatchTypeCount struct {
	MatchType string `json:"match_type"`
	Count     int64  `json:"count"`
}

// BrowserCount counts archived artifacts per browser family.
type BrowserCount struct {
	Browser string `json:"browser"`
	Count   int64  `json:"count"`
}
