package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/histlens/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string                    `json:"version"`
	DatabasePath      string                    `json:"database_path"`
	DatabaseSizeBytes int64                     `json:"database_size_bytes"`
	TotalArtifacts    int64                     `json:"total_artifacts"`
	TotalVisits       int64                     `json:"total_visits"`
	TotalDownloads    int64                     `json:"total_downloads"`
	Correlated        int64                     `json:"correlated_downloads"`
	OldestVisit       string                    `json:"oldest_visit,omitempty"`
	NewestVisit       string                    `json:"newest_visit,omitempty"`
	RetentionDays     int                       `json:"retention_days"`
	ArchiveEnabled    bool                      `json:"archive_enabled"`
	TopDomains        []storage.DomainCount     `json:"top_domains"`
	MatchTypes        []storage.MatchTypeCount  `json:"match_types"`
	Browsers          []storage.BrowserCount    `json:"browsers"`
	Artifacts         []storage.ArtifactSummary `json:"artifacts"`
	RecentActivity    []storage.AuditEntry      `json:"recent_activity"`
}

const recentActivityLimit = 5

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	ctx := context.Background()
	sess, err := openSession(ctx, c.globals, c.store)
	if err != nil {
		return err
	}
	defer sess.Close()

	stats, err := sess.store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	artifacts, err := sess.store.ListArtifacts(ctx)
	if err != nil {
		return fmt.Errorf("list artifacts: %w", err)
	}
	activity, err := sess.store.RecentAudit(ctx, recentActivityLimit)
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	out := statusJSON{
		Version:           c.version,
		DatabasePath:      sess.dbPath,
		DatabaseSizeBytes: databaseSize(sess.dbPath),
		TotalArtifacts:    stats.TotalArtifacts,
		TotalVisits:       stats.TotalVisits,
		TotalDownloads:    stats.TotalDownloads,
		Correlated:        stats.CorrelatedDownloads,
		RetentionDays:     sess.cfg.Archive.RetentionDays,
		ArchiveEnabled:    sess.cfg.Archive.Enabled,
		TopDomains:        stats.TopDomains,
		MatchTypes:        stats.MatchTypes,
		Browsers:          stats.Browsers,
		Artifacts:         artifacts,
		RecentActivity:    activity,
	}
	if !stats.OldestVisit.IsZero() {
		out.OldestVisit = stats.OldestVisit.UTC().Format(time.RFC3339)
		out.NewestVisit = stats.NewestVisit.UTC().Format(time.RFC3339)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(out)
	}
	c.printHuman(stats, out)
	return nil
}

func (c *StatusCommand) printHuman(stats *storage.Stats, out statusJSON) {
	fmt.Println("histlens status")
	fmt.Println("===============")
	fmt.Printf("Version:       %s\n", out.Version)
	fmt.Printf("Database:      %s (%s)\n", out.DatabasePath, formatBytes(out.DatabaseSizeBytes))
	fmt.Printf("Artifacts:     %s\n", formatNumber(out.TotalArtifacts))
	fmt.Printf("Visits:        %s\n", formatNumber(out.TotalVisits))

	if out.TotalDownloads > 0 {
		pct := float64(out.Correlated) / float64(out.TotalDownloads) * 100
		fmt.Printf("Downloads:     %s (%.1f%% with sources)\n", formatNumber(out.TotalDownloads), pct)
	} else {
		fmt.Printf("Downloads:     %s\n", formatNumber(out.TotalDownloads))
	}

	if !stats.OldestVisit.IsZero() {
		fmt.Printf("Oldest:        %s\n", stats.OldestVisit.Local().Format("2006-01-02"))
		fmt.Printf("Newest:        %s\n", stats.NewestVisit.Local().Format("2006-01-02"))
	}

	if out.RetentionDays > 0 {
		fmt.Printf("Retention:     %d days\n", out.RetentionDays)
	} else {
		fmt.Println("Retention:     forever")
	}
	if !out.ArchiveEnabled {
		fmt.Println("Archive:       disabled")
	}

	if len(out.TopDomains) > 0 {
		fmt.Println()
		fmt.Println("Top Domains:")
		for _, d := range out.TopDomains {
			fmt.Printf("  %-24s %s\n", d.Domain, formatNumber(d.Count))
		}
	}

	if len(out.MatchTypes) > 0 {
		fmt.Println()
		fmt.Println("Source Matches:")
		for _, m := range out.MatchTypes {
			fmt.Printf("  %-24s %s\n", m.MatchType, formatNumber(m.Count))
		}
	}

	if len(out.Artifacts) > 0 {
		fmt.Println()
		fmt.Println("Artifacts:")
		for _, a := range out.Artifacts {
			fmt.Printf("  %s  %-8s %s  %s visits, %s downloads  %s\n",
				a.ID, a.Browser, a.ProcessedAt.Local().Format("2006-01-02 15:04"),
				formatNumber(a.VisitCount), formatNumber(a.DownloadCount), a.SourceName)
		}
	}

	if len(out.RecentActivity) > 0 {
		fmt.Println()
		fmt.Println("Recent Activity:")
		for _, e := range out.RecentActivity {
			line := fmt.Sprintf("  %s  %-7s %s", e.Time.Local().Format("2006-01-02 15:04"), e.Action, e.ArtifactID)
			if e.Detail != "" {
				line += "  " + e.Detail
			}
			fmt.Println(strings.TrimRight(line, " "))
		}
	}
}

// databaseSize returns the archive size in bytes including its WAL file,
// 0 when it has no file on disk.
func databaseSize(dbPath string) int64 {
	var total int64
	for _, p := range []string{dbPath, dbPath + "-wal"} {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	return total
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if i > 0 {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
