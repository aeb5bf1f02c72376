package artifact

import (
	"fmt"
	"strings"

	"github.com/runnerr0/histlens/internal/timeconv"
)

// Family identifies a browser schema family.
type Family string

const (
	Chromium Family = "chromium"
	Firefox  Family = "firefox"
)

// Epoch returns the timestamp encoding used by the family's databases.
func (f Family) Epoch() timeconv.Epoch {
	if f == Firefox {
		return timeconv.UnixMicro
	}
	return timeconv.WebKit
}

// ParseFamily accepts the browser names users are likely to type.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chrome", "chromium", "edge", "brave":
		return Chromium, nil
	case "firefox", "mozilla":
		return Firefox, nil
	default:
		return "", fmt.Errorf("unknown browser %q (use chrome or firefox)", s)
	}
}

// DetectFamily guesses the schema family from an uploaded file name.
func DetectFamily(filename string) Family {
	name := strings.ToLower(filename)
	if strings.Contains(name, "places.sqlite") || strings.HasSuffix(name, ".sqlite") {
		return Firefox
	}
	return Chromium
}

// VisitRecord is one page visit from the history snapshot.
type VisitRecord struct {
	URL        string           `json:"url"`
	Title      string           `json:"title"`
	Domain     string           `json:"domain"`
	VisitTime  timeconv.Instant `json:"visit_time"`
	VisitCount int              `json:"visit_count"`
}

// DownloadStatus is the lifecycle state of a download, shared by both
// families.
type DownloadStatus string

const (
	StatusInProgress  DownloadStatus = "in_progress"
	StatusCompleted   DownloadStatus = "completed"
	StatusCanceled    DownloadStatus = "canceled"
	StatusFailed      DownloadStatus = "failed"
	StatusInterrupted DownloadStatus = "interrupted"
	StatusUnknown     DownloadStatus = "unknown"
)

// ChromiumDownloadState maps the downloads.state column.
func ChromiumDownloadState(state int) DownloadStatus {
	switch state {
	case 0:
		return StatusInProgress
	case 1:
		return StatusCompleted
	case 2:
		return StatusCanceled
	case 3:
		return StatusFailed
	case 4:
		return StatusInterrupted
	default:
		return StatusUnknown
	}
}

// FirefoxDownloadState maps the "state" field of the downloads/metaData
// annotation.
func FirefoxDownloadState(state int) DownloadStatus {
	switch state {
	case 0:
		return StatusInProgress
	case 1:
		return StatusCompleted
	case 2:
		return StatusFailed
	case 3:
		return StatusCanceled
	case 4:
		return StatusInterrupted
	default:
		return StatusUnknown
	}
}

// DownloadRecord is one reconstructed download event.
type DownloadRecord struct {
	Filename     string           `json:"filename"`
	SourceURL    string           `json:"url"`
	DownloadTime timeconv.Instant `json:"download_time"`
	Referrer     string           `json:"referrer"`
	FileSize     int64            `json:"file_size"`
	MimeType     string           `json:"mime_type"`
	Status       DownloadStatus   `json:"status"`
}

// Eligible reports whether the record carries the fields correlation needs.
func (d DownloadRecord) Eligible() bool {
	return strings.TrimSpace(d.SourceURL) != "" && !d.DownloadTime.IsEmpty()
}

// SyncedVisit is a Chromium visit annotated with its visit_source origin.
type SyncedVisit struct {
	URL        string           `json:"url"`
	Title      string           `json:"title"`
	VisitTime  timeconv.Instant `json:"visit_time"`
	Source     int              `json:"source"`
	SourceDesc string           `json:"source_desc"`
}

// VisitSourceDescription describes a Chromium visit_source code.
func VisitSourceDescription(code int) string {
	switch code {
	case 0:
		return "Synchronised from another device"
	case 1:
		return "User browsed"
	case 2:
		return "Added by an extension"
	case 3:
		return "Imported from Firefox"
	case 4:
		return "Imported from IE"
	case 5:
		return "Imported from Safari"
	default:
		return fmt.Sprintf("Unknown source (%d)", code)
	}
}
