package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/histlens/internal/analysis"
	"github.com/runnerr0/histlens/internal/artifact"
	"github.com/runnerr0/histlens/internal/correlate"
	"github.com/runnerr0/histlens/internal/timeconv"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func ts(d time.Duration) timeconv.Instant { return timeconv.At(t0.Add(d)) }

func sampleBundle() *analysis.Bundle {
	return &analysis.Bundle{
		ID:     "abc",
		Family: artifact.Chromium,
		Visits: []artifact.VisitRecord{
			{URL: "https://a.com/x", Title: "A, with comma", Domain: "a.com", VisitTime: ts(-time.Hour), VisitCount: 2},
			{URL: "https://a.com/y", Title: "A2", Domain: "a.com", VisitTime: ts(-25 * time.Hour), VisitCount: 1},
			{URL: "https://b.com/", Title: "B", Domain: "b.com", VisitTime: timeconv.Empty, VisitCount: 5},
		},
		Downloads: []artifact.DownloadRecord{
			{Filename: "f.zip", SourceURL: "https://a.com/f.zip", DownloadTime: ts(0), FileSize: 10, MimeType: "application/zip", Status: artifact.StatusCompleted},
			{Filename: "g.bin", Status: artifact.StatusFailed},
		},
		DownloadSources: []correlate.DownloadSourceGroup{
			{Filename: "f.zip", DownloadURL: "https://a.com/f.zip", DownloadTime: ts(0), Sources: []correlate.SourceCandidate{
				{URL: "https://a.com/x", Title: "A, with comma", Time: ts(-time.Hour), MatchType: correlate.SameDomain},
				{URL: "https://b.com/", Title: "B", MatchType: correlate.Temporal},
			}},
			{Filename: "g.bin", Sources: []correlate.SourceCandidate{}},
		},
	}
}

func TestParseKindAndFormat(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, History, k)
	k, err = ParseKind(" Sources ")
	require.NoError(t, err)
	assert.Equal(t, Sources, k)
	_, err = ParseKind("excel")
	assert.Error(t, err)

	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, CSV, f)
	f, err = ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, JSON, f)
	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "browser_history_abc.csv", FileName(History, CSV, "abc"))
	assert.Equal(t, "browser_downloads_abc.json", FileName(Downloads, JSON, "abc"))
	assert.Equal(t, "download_sources_abc.csv", FileName(Sources, CSV, "abc"))
}

func TestWrite_HistoryCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleBundle(), History, CSV))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "title,url,visit_time,domain,visit_count", lines[0])
	assert.Equal(t, `"A, with comma",https://a.com/x,2024-05-01T11:00:00Z,a.com,2`, lines[1])
	assert.Equal(t, "B,https://b.com/,,b.com,5", lines[3])
}

func TestWrite_DownloadsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleBundle(), Downloads, CSV))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "filename,url,referrer,download_time,file_size,mime_type,status", lines[0])
	assert.Equal(t, "f.zip,https://a.com/f.zip,,2024-05-01T12:00:00Z,10,application/zip,completed", lines[1])
	assert.Equal(t, "g.bin,,,,0,,failed", lines[2])
}

func TestWrite_SourcesCSVFlattens(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleBundle(), Sources, CSV))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "filename,download_url,download_time,rank,source_url,source_title,source_time,match_type", lines[0])
	assert.Contains(t, lines[1], ",1,https://a.com/x,")
	assert.True(t, strings.HasSuffix(lines[1], ",same_domain"))
	assert.Contains(t, lines[2], ",2,https://b.com/,B,,temporal")
	assert.Equal(t, "g.bin,,,,,,,", lines[3])
	assert.Equal(t, 3, Count(sampleBundle(), Sources))
}

func TestWrite_EmptyCSVHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &analysis.Bundle{ID: "x"}, Downloads, CSV))
	assert.Equal(t, "filename,url,referrer,download_time,file_size,mime_type,status\n", buf.String())
	assert.Equal(t, 0, Count(&analysis.Bundle{}, Downloads))
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleBundle(), Sources, JSON))
	assert.Contains(t, buf.String(), "\n  {", "indented")

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, float64(1), rows[0]["rank"])
	assert.Equal(t, "same_domain", rows[0]["match_type"])
	_, hasRank := rows[2]["rank"]
	assert.False(t, hasRank)

	buf.Reset()
	require.NoError(t, Write(&buf, &analysis.Bundle{}, History, JSON))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWrite_Domains(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleBundle(), Domains, CSV))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "domain,visit_count,last_visit_time,frequency", lines[0])
	assert.Equal(t, "b.com,5,,1", lines[1])
	assert.Equal(t, "a.com,3,2024-05-01T11:00:00Z,2", lines[2])
}

func TestWrite_Timeline(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleBundle(), Timeline, CSV))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,visit_count,unique_urls,unique_domains", lines[0])
	assert.Equal(t, "2024-04-30,1,1,1", lines[1])
	assert.Equal(t, "2024-05-01,1,1,1", lines[2])
}

func TestWrite_Synced(t *testing.T) {
	b := sampleBundle()
	b.SyncInfo.SyncedVisits = []artifact.SyncedVisit{
		{URL: "https://c.com/", Title: "C", VisitTime: ts(0), Source: 0, SourceDesc: artifact.VisitSourceDescription(0)},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, b, Synced, CSV))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "title,url,visit_time,source,source_desc", lines[0])
	assert.Equal(t, "C,https://c.com/,2024-05-01T12:00:00Z,0,Synchronised from another device", lines[1])
	assert.Equal(t, 1, Count(b, Synced))
	assert.Equal(t, "synced_data_abc.csv", FileName(Synced, CSV, "abc"))
}

func TestWrite_UnknownKind(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, sampleBundle(), Kind("bogus"), CSV))
	assert.Error(t, Write(&buf, sampleBundle(), History, Format("xml")))
}
