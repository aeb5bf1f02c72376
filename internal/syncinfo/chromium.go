package syncinfo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/runnerr0/histlens/internal/timeconv"
)

type chromiumAccount struct {
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	AccountType string `json:"account_type"`
}

type chromiumPreferences struct {
	AccountInfo json.RawMessage `json:"account_info"`
	Sync        *struct {
		Encryption         map[string]json.RawMessage `json:"encryption"`
		FirstSetupTime     json.RawMessage            `json:"first_setup_time"`
		LastSyncedTime     json.RawMessage            `json:"last_synced_time"`
		PreferredDataTypes map[string]json.RawMessage `json:"preferred_data_types"`
	} `json:"sync"`
}

// ParseChromiumPreferences reads a Chromium "Preferences" JSON document.
func ParseChromiumPreferences(r io.Reader) (Info, error) {
	data, err := readAll(r)
	if err != nil {
		return Empty(), err
	}

	var prefs chromiumPreferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return Empty(), fmt.Errorf("parse preferences: %w", err)
	}

	info := Empty()
	info.AccountInfo = parseChromiumAccount(prefs.AccountInfo)

	if s := prefs.Sync; s != nil {
		_, info.SyncSettings.Enabled = s.Encryption["enabled"]
		info.SyncSettings.FirstSyncTime = webkitString(s.FirstSetupTime)
		info.SyncSettings.LastSyncTime = webkitString(s.LastSyncedTime)
		info.AccountInfo.LastSyncTime = info.SyncSettings.LastSyncTime

		names := make([]string, 0, len(s.PreferredDataTypes))
		for name := range s.PreferredDataTypes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			info.SyncSettings.DataTypes = append(info.SyncSettings.DataTypes, DataType{
				Name:    name,
				Enabled: truthy(s.PreferredDataTypes[name]),
			})
		}
	}

	return info, nil
}

// parseChromiumAccount accepts an object or a list of objects; the first
// list entry wins.
func parseChromiumAccount(raw json.RawMessage) AccountInfo {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return AccountInfo{}
	}

	var acct chromiumAccount
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
			return AccountInfo{}
		}
		if err := json.Unmarshal(list[0], &acct); err != nil {
			return AccountInfo{}
		}
	} else if err := json.Unmarshal(raw, &acct); err != nil {
		return AccountInfo{}
	}

	return AccountInfo{
		Email:       acct.Email,
		Name:        acct.FullName,
		AccountType: acct.AccountType,
	}
}

// webkitString decodes a WebKit timestamp stored as a number or a numeric
// string.
func webkitString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	text := string(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = s
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil {
			return ""
		}
		v = int64(f)
	}
	return timeconv.WebKit.Instant(v).String()
}

// truthy interprets a preference value the way the browser UI does.
func truthy(raw json.RawMessage) bool {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != "" && t != "false" && t != "0"
	case nil:
		return false
	default:
		return true
	}
}
