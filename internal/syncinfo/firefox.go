package syncinfo

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/runnerr0/histlens/internal/timeconv"
)

// userPrefRe matches user_pref("name", value); lines in prefs.js.
var userPrefRe = regexp.MustCompile(`^\s*user_pref\(\s*"([^"]+)"\s*,\s*(.+?)\s*\)\s*;`)

const engineKeyPrefix = "services.sync.engine."

// ParseFirefoxPrefs reads a Firefox prefs.js file.
func ParseFirefoxPrefs(r io.Reader) (Info, error) {
	info := Empty()
	engines := map[string]int{}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		m := userPrefRe.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		key, value := m[1], m[2]

		switch {
		case key == "services.sync.username":
			if s, ok := prefString(value); ok {
				info.AccountInfo.Email = s
			}
		case key == "services.sync.enabled":
			if b, ok := prefBool(value); ok {
				info.SyncSettings.Enabled = b
			}
		case key == "services.sync.lastSync":
			if s, ok := prefString(value); ok {
				info.SyncSettings.LastSyncTime = normalizeTime(s)
			}
		case strings.HasPrefix(key, engineKeyPrefix):
			b, ok := prefBool(value)
			if !ok {
				continue
			}
			name := strings.TrimPrefix(key, engineKeyPrefix)
			if i, seen := engines[name]; seen {
				info.SyncSettings.DataTypes[i].Enabled = b
				continue
			}
			engines[name] = len(info.SyncSettings.DataTypes)
			info.SyncSettings.DataTypes = append(info.SyncSettings.DataTypes, DataType{Name: name, Enabled: b})
		}
	}
	if err := sc.Err(); err != nil {
		return Empty(), fmt.Errorf("read prefs.js: %w", err)
	}

	if email := info.AccountInfo.Email; email != "" {
		info.AccountInfo.Name = strings.SplitN(email, "@", 2)[0]
		info.AccountInfo.AccountType = "Firefox Account"
		info.AccountInfo.LastSyncTime = info.SyncSettings.LastSyncTime
	}
	return info, nil
}

func prefString(v string) (string, bool) {
	if len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
		return "", false
	}
	return v[1 : len(v)-1], true
}

func prefBool(v string) (bool, bool) {
	switch v {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// normalizeTime rewrites parseable timestamps as RFC 3339 and keeps other
// text as is.
func normalizeTime(s string) string {
	if t := timeconv.Parse(s); !t.IsEmpty() {
		return t.String()
	}
	return s
}
