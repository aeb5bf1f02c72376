package timeconv

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// webkitEpochOffset is the number of seconds between 1601-01-01 and
// 1970-01-01 (UTC).
const webkitEpochOffset = 11644473600

// Instant is the canonical point in time used across histlens. The zero
// Instant is the empty sentinel: it marks an absent or unparseable source
// value and is distinct from the Unix epoch, which is a valid instant.
type Instant struct {
	time.Time
}

// Empty is the sentinel for a missing timestamp.
var Empty = Instant{}

// At wraps t as an Instant normalized to UTC. A zero t yields Empty.
func At(t time.Time) Instant {
	if t.IsZero() {
		return Empty
	}
	return Instant{Time: t.UTC()}
}

// IsEmpty reports whether i is the empty sentinel.
func (i Instant) IsEmpty() bool {
	return i.Time.IsZero()
}

// String formats i as RFC 3339, or "" when empty.
func (i Instant) String() string {
	if i.IsEmpty() {
		return ""
	}
	return i.Time.UTC().Format(time.RFC3339)
}

// MarshalJSON emits an RFC 3339 string, or "" for the empty sentinel.
func (i Instant) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

// UnmarshalJSON accepts "", null, and any layout understood by Parse.
func (i *Instant) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*i = Empty
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("instant: %w", err)
	}
	if s == "" {
		*i = Empty
		return nil
	}
	parsed := Parse(s)
	if parsed.IsEmpty() {
		return fmt.Errorf("instant: cannot parse %q", s)
	}
	*i = parsed
	return nil
}

// layouts are the textual forms Parse understands, most specific first.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse reads a textual timestamp. It never fails: anything it cannot read
// becomes Empty.
func Parse(s string) Instant {
	s = strings.TrimSpace(s)
	if s == "" {
		return Empty
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return At(t)
		}
	}
	return Empty
}

// Epoch converts a browser-native integer timestamp into an Instant.
type Epoch interface {
	// Name identifies the encoding, e.g. "webkit".
	Name() string
	// Instant converts raw; values <= 0 yield Empty.
	Instant(raw int64) Instant
	// Raw is the inverse of Instant; Empty yields 0.
	Raw(i Instant) int64
}

type webkitEpoch struct{}

func (webkitEpoch) Name() string { return "webkit" }

func (webkitEpoch) Instant(raw int64) Instant {
	if raw <= 0 {
		return Empty
	}
	return Instant{Time: time.UnixMicro(raw - webkitEpochOffset*1_000_000).UTC()}
}

func (webkitEpoch) Raw(i Instant) int64 {
	if i.IsEmpty() {
		return 0
	}
	return i.Time.UnixMicro() + webkitEpochOffset*1_000_000
}

type unixMicroEpoch struct{}

func (unixMicroEpoch) Name() string { return "unix_micro" }

func (unixMicroEpoch) Instant(raw int64) Instant {
	if raw <= 0 {
		return Empty
	}
	return Instant{Time: time.UnixMicro(raw).UTC()}
}

func (unixMicroEpoch) Raw(i Instant) int64 {
	if i.IsEmpty() {
		return 0
	}
	return i.Time.UnixMicro()
}

var (
	// WebKit is microseconds since 1601-01-01T00:00:00Z (Chromium family).
	WebKit Epoch = webkitEpoch{}
	// UnixMicro is microseconds since 1970-01-01T00:00:00Z (Firefox family).
	UnixMicro Epoch = unixMicroEpoch{}
)
