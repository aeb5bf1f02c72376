// Package export renders a processed artifact as CSV or JSON files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jszwec/csvutil"

	"github.com/runnerr0/histlens/internal/analysis"
	"github.com/runnerr0/histlens/internal/artifact"
	"github.com/runnerr0/histlens/internal/timeconv"
)

// Kind selects which records are exported.
type Kind string

const (
	History   Kind = "history"
	Downloads Kind = "downloads"
	Sources   Kind = "sources"
	Domains   Kind = "domains"
	Timeline  Kind = "timeline"
	Synced    Kind = "sync"
)

// Format is the output encoding.
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
)

// ParseKind accepts a kind name, case-insensitively. Empty means History.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return History, nil
	case History, Downloads, Sources, Domains, Timeline, Synced:
		return k, nil
	default:
		return "", fmt.Errorf("unsupported data type: %s", s)
	}
}

// ParseFormat accepts a format name, case-insensitively. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return CSV, nil
	case CSV, JSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// ContentType is the MIME type for f.
func (f Format) ContentType() string {
	if f == JSON {
		return "application/json"
	}
	return "text/csv; charset=utf-8"
}

// FileName is the suggested download name, e.g. browser_history_<id>.csv.
func FileName(kind Kind, format Format, id string) string {
	prefix := "browser_" + string(kind)
	switch kind {
	case Sources:
		prefix = "download_sources"
	case Synced:
		prefix = "synced_data"
	}
	return fmt.Sprintf("%s_%s.%s", prefix, id, format)
}

type historyRow struct {
	Title      string `csv:"title" json:"title"`
	URL        string `csv:"url" json:"url"`
	VisitTime  string `csv:"visit_time" json:"visit_time"`
	Domain     string `csv:"domain" json:"domain"`
	VisitCount int    `csv:"visit_count" json:"visit_count"`
}

type downloadRow struct {
	Filename     string `csv:"filename" json:"filename"`
	URL          string `csv:"url" json:"url"`
	Referrer     string `csv:"referrer" json:"referrer"`
	DownloadTime string `csv:"download_time" json:"download_time"`
	FileSize     int64  `csv:"file_size" json:"file_size"`
	MimeType     string `csv:"mime_type" json:"mime_type"`
	Status       string `csv:"status" json:"status"`
}

// sourceRow is one candidate of one download. Downloads without candidates
// get a single row with empty source columns.
type sourceRow struct {
	Filename     string `csv:"filename" json:"filename"`
	DownloadURL  string `csv:"download_url" json:"download_url"`
	DownloadTime string `csv:"download_time" json:"download_time"`
	Rank         int    `csv:"rank,omitempty" json:"rank,omitempty"`
	SourceURL    string `csv:"source_url" json:"source_url"`
	SourceTitle  string `csv:"source_title" json:"source_title"`
	SourceTime   string `csv:"source_time" json:"source_time"`
	MatchType    string `csv:"match_type" json:"match_type"`
}

type syncedRow struct {
	Title      string `csv:"title" json:"title"`
	URL        string `csv:"url" json:"url"`
	VisitTime  string `csv:"visit_time" json:"visit_time"`
	Source     int    `csv:"source" json:"source"`
	SourceDesc string `csv:"source_desc" json:"source_desc"`
}

type domainRow struct {
	Domain        string `csv:"domain" json:"domain"`
	VisitCount    int    `csv:"visit_count" json:"visit_count"`
	LastVisitTime string `csv:"last_visit_time" json:"last_visit_time"`
	Frequency     int    `csv:"frequency" json:"frequency"`
}

type timelineRow struct {
	Date          string `csv:"date" json:"date"`
	VisitCount    int    `csv:"visit_count" json:"visit_count"`
	UniqueURLs    int    `csv:"unique_urls" json:"unique_urls"`
	UniqueDomains int    `csv:"unique_domains" json:"unique_domains"`
}

// Count is the number of records kind would export from b.
func Count(b *analysis.Bundle, kind Kind) int {
	switch kind {
	case Downloads:
		return len(b.Downloads)
	case Sources:
		return len(sourceRows(b))
	case Domains:
		return len(domainRows(b.Visits))
	case Timeline:
		return len(timelineRows(b.Visits))
	case Synced:
		return len(b.SyncInfo.SyncedVisits)
	default:
		return len(b.Visits)
	}
}

// Write encodes the kind records of b to w.
func Write(w io.Writer, b *analysis.Bundle, kind Kind, format Format) error {
	switch kind {
	case History:
		return encode(w, format, historyRows(b.Visits), historyRow{})
	case Downloads:
		return encode(w, format, downloadRows(b.Downloads), downloadRow{})
	case Sources:
		return encode(w, format, sourceRows(b), sourceRow{})
	case Domains:
		return encode(w, format, domainRows(b.Visits), domainRow{})
	case Timeline:
		return encode(w, format, timelineRows(b.Visits), timelineRow{})
	case Synced:
		return encode(w, format, syncedRows(b.SyncInfo.SyncedVisits), syncedRow{})
	default:
		return fmt.Errorf("unsupported data type: %s", kind)
	}
}

// encode writes rows as CSV (header always present) or as an indented JSON
// array. header is a zero row used to emit the CSV header for empty input.
func encode(w io.Writer, format Format, rows interface{}, header interface{}) error {
	switch format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case CSV:
		cw := csv.NewWriter(w)
		enc := csvutil.NewEncoder(cw)
		if err := enc.EncodeHeader(header); err != nil {
			return fmt.Errorf("encode csv header: %w", err)
		}
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("encode csv: %w", err)
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("flush csv: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

func historyRows(visits []artifact.VisitRecord) []historyRow {
	rows := make([]historyRow, 0, len(visits))
	for _, v := range visits {
		rows = append(rows, historyRow{
			Title:      v.Title,
			URL:        v.URL,
			VisitTime:  v.VisitTime.String(),
			Domain:     v.Domain,
			VisitCount: v.VisitCount,
		})
	}
	return rows
}

func downloadRows(downloads []artifact.DownloadRecord) []downloadRow {
	rows := make([]downloadRow, 0, len(downloads))
	for _, d := range downloads {
		rows = append(rows, downloadRow{
			Filename:     d.Filename,
			URL:          d.SourceURL,
			Referrer:     d.Referrer,
			DownloadTime: d.DownloadTime.String(),
			FileSize:     d.FileSize,
			MimeType:     d.MimeType,
			Status:       string(d.Status),
		})
	}
	return rows
}

func sourceRows(b *analysis.Bundle) []sourceRow {
	rows := []sourceRow{}
	for _, g := range b.DownloadSources {
		head := sourceRow{
			Filename:     g.Filename,
			DownloadURL:  g.DownloadURL,
			DownloadTime: g.DownloadTime.String(),
		}
		if len(g.Sources) == 0 {
			rows = append(rows, head)
			continue
		}
		for i, c := range g.Sources {
			r := head
			r.Rank = i + 1
			r.SourceURL = c.URL
			r.SourceTitle = c.Title
			r.SourceTime = c.Time.String()
			r.MatchType = string(c.MatchType)
			rows = append(rows, r)
		}
	}
	return rows
}

func syncedRows(visits []artifact.SyncedVisit) []syncedRow {
	rows := make([]syncedRow, 0, len(visits))
	for _, v := range visits {
		rows = append(rows, syncedRow{
			Title:      v.Title,
			URL:        v.URL,
			VisitTime:  v.VisitTime.String(),
			Source:     v.Source,
			SourceDesc: v.SourceDesc,
		})
	}
	return rows
}

// domainRows aggregates visits per domain, busiest first. VisitCount sums
// the browser's visit counters; Frequency counts history entries.
func domainRows(visits []artifact.VisitRecord) []domainRow {
	index := map[string]int{}
	last := map[string]timeconv.Instant{}
	rows := []domainRow{}
	for _, v := range visits {
		if v.Domain == "" {
			continue
		}
		i, ok := index[v.Domain]
		if !ok {
			i = len(rows)
			index[v.Domain] = i
			rows = append(rows, domainRow{Domain: v.Domain})
		}
		rows[i].VisitCount += v.VisitCount
		rows[i].Frequency++
		if v.VisitTime.After(last[v.Domain].Time) {
			last[v.Domain] = v.VisitTime
		}
	}
	for i := range rows {
		rows[i].LastVisitTime = last[rows[i].Domain].String()
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].VisitCount != rows[j].VisitCount {
			return rows[i].VisitCount > rows[j].VisitCount
		}
		return rows[i].Domain < rows[j].Domain
	})
	return rows
}

// timelineRows buckets dated visits by UTC calendar day, oldest first.
func timelineRows(visits []artifact.VisitRecord) []timelineRow {
	type day struct {
		visits  int
		urls    map[string]bool
		domains map[string]bool
	}
	days := map[string]*day{}
	for _, v := range visits {
		if v.VisitTime.IsEmpty() {
			continue
		}
		key := v.VisitTime.UTC().Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &day{urls: map[string]bool{}, domains: map[string]bool{}}
			days[key] = d
		}
		d.visits++
		d.urls[v.URL] = true
		if v.Domain != "" {
			d.domains[v.Domain] = true
		}
	}

	rows := make([]timelineRow, 0, len(days))
	for key, d := range days {
		rows = append(rows, timelineRow{
			Date:          key,
			VisitCount:    d.visits,
			UniqueURLs:    len(d.urls),
			UniqueDomains: len(d.domains),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	return rows
}
