// Package correlate attributes each download to the page visits that most
// plausibly led to it.
package correlate

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/runnerr0/histlens/internal/artifact"
	"github.com/runnerr0/histlens/internal/timeconv"
	"github.com/runnerr0/histlens/internal/urlutil"
)

// MatchType names the rule that selected a source candidate.
type MatchType string

const (
	SameDomain  MatchType = "same_domain"
	FilePattern MatchType = "file_pattern"
	Temporal    MatchType = "temporal"
)

// SourceCandidate is a visit proposed as the origin of a download.
type SourceCandidate struct {
	URL       string           `json:"url"`
	Title     string           `json:"title"`
	Time      timeconv.Instant `json:"time"`
	MatchType MatchType        `json:"match_type"`
}

// DownloadSourceGroup is the correlation result for one download.
type DownloadSourceGroup struct {
	Filename     string            `json:"filename"`
	DownloadURL  string            `json:"download_url"`
	DownloadTime timeconv.Instant  `json:"download_time"`
	Sources      []SourceCandidate `json:"sources"`
}

// MarshalJSON emits sources as [] when there are none.
func (g DownloadSourceGroup) MarshalJSON() ([]byte, error) {
	type alias DownloadSourceGroup
	if g.Sources == nil {
		g.Sources = []SourceCandidate{}
	}
	return json.Marshal(alias(g))
}

// Options tunes the correlation heuristics.
type Options struct {
	// Window is how far before a download a visit may lie.
	Window time.Duration
	// MaxSources caps the candidates per download.
	MaxSources int
	// SameDomainLimit caps the same_domain bucket.
	SameDomainLimit int
	// FilePatternLimit caps the file_pattern bucket.
	FilePatternLimit int
}

// DefaultOptions returns the stock one-hour window with five sources, at
// most three by domain and two by file pattern.
func DefaultOptions() Options {
	return Options{
		Window:           time.Hour,
		MaxSources:       5,
		SameDomainLimit:  3,
		FilePatternLimit: 2,
	}
}

// normalized replaces non-positive values with their defaults.
func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.Window <= 0 {
		o.Window = def.Window
	}
	if o.MaxSources <= 0 {
		o.MaxSources = def.MaxSources
	}
	if o.SameDomainLimit < 0 {
		o.SameDomainLimit = def.SameDomainLimit
	}
	if o.FilePatternLimit < 0 {
		o.FilePatternLimit = def.FilePatternLimit
	}
	return o
}

// Engine runs correlation with fixed options. It holds no state between
// calls and is safe for concurrent use.
type Engine struct {
	opts Options
}

// New returns an Engine using opts; invalid fields fall back to defaults.
func New(opts Options) *Engine {
	return &Engine{opts: opts.normalized()}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Correlate correlates with DefaultOptions.
func Correlate(history []artifact.VisitRecord, downloads []artifact.DownloadRecord) []DownloadSourceGroup {
	return New(DefaultOptions()).Correlate(history, downloads)
}

// Correlate returns one group per download, in download order. history must
// be the full snapshot, not a display page.
func (e *Engine) Correlate(history []artifact.VisitRecord, downloads []artifact.DownloadRecord) []DownloadSourceGroup {
	tl := newTimeline(history)

	groups := make([]DownloadSourceGroup, 0, len(downloads))
	for _, d := range downloads {
		groups = append(groups, e.correlateOne(tl, d))
	}
	return groups
}

func (e *Engine) correlateOne(tl timeline, d artifact.DownloadRecord) DownloadSourceGroup {
	g := DownloadSourceGroup{
		Filename:     d.Filename,
		DownloadURL:  d.SourceURL,
		DownloadTime: d.DownloadTime,
		Sources:      []SourceCandidate{},
	}
	if !d.Eligible() {
		return g
	}

	end := d.DownloadTime.Time
	window := tl.between(end.Add(-e.opts.Window), end)
	if len(window) == 0 {
		return g
	}

	seen := make(map[string]bool, e.opts.MaxSources)
	add := func(v artifact.VisitRecord, mt MatchType) {
		seen[v.URL] = true
		g.Sources = append(g.Sources, SourceCandidate{
			URL:       v.URL,
			Title:     v.Title,
			Time:      v.VisitTime,
			MatchType: mt,
		})
	}

	// Each bucket stops at its own cap and at the overall cap.
	fill := func(limit int, mt MatchType, match func(artifact.VisitRecord) bool) {
		taken := 0
		for _, v := range window {
			if taken >= limit || len(g.Sources) >= e.opts.MaxSources {
				return
			}
			if seen[v.URL] || !match(v) {
				continue
			}
			add(v, mt)
			taken++
		}
	}

	if domain := urlutil.Domain(d.SourceURL); domain != "" {
		fill(e.opts.SameDomainLimit, SameDomain, func(v artifact.VisitRecord) bool {
			return v.Domain == domain
		})
	}

	if ext := fileExtension(d.Filename); ext != "" {
		fill(e.opts.FilePatternLimit, FilePattern, func(v artifact.VisitRecord) bool {
			return strings.Contains(strings.ToLower(v.URL), ext)
		})
	}

	fill(e.opts.MaxSources, Temporal, func(artifact.VisitRecord) bool { return true })

	return g
}

// fileExtension returns the lowercase extension of name including the dot.
// Leading dots do not start an extension, so ".bashrc" has none; a bare
// trailing dot is not an extension either.
func fileExtension(name string) string {
	name = artifact.BaseName(name)
	trimmed := strings.TrimLeft(name, ".")
	i := strings.LastIndex(trimmed, ".")
	if i < 0 || i == len(trimmed)-1 {
		return ""
	}
	return strings.ToLower(trimmed[i:])
}

// timeline is the history ordered most recent first, ties in input order,
// with undated visits removed.
type timeline []artifact.VisitRecord

func newTimeline(history []artifact.VisitRecord) timeline {
	tl := make(timeline, 0, len(history))
	for _, v := range history {
		if !v.VisitTime.IsEmpty() {
			tl = append(tl, v)
		}
	}
	sort.SliceStable(tl, func(i, j int) bool {
		return tl[i].VisitTime.After(tl[j].VisitTime.Time)
	})
	return tl
}

// between returns the visits with from <= time <= to, most recent first.
func (tl timeline) between(from, to time.Time) timeline {
	lo := sort.Search(len(tl), func(i int) bool {
		return !tl[i].VisitTime.After(to)
	})
	hi := sort.Search(len(tl), func(i int) bool {
		return tl[i].VisitTime.Before(from)
	})
	if lo >= hi {
		return nil
	}
	return tl[lo:hi]
}
