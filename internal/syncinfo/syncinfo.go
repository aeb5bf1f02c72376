// Package syncinfo reads account and sync settings from the browser profile
// files that sit next to a history database.
package syncinfo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/runnerr0/histlens/internal/artifact"
)

// AccountInfo describes the signed-in browser account.
type AccountInfo struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	AccountType  string `json:"account_type"`
	LastSyncTime string `json:"last_sync_time"`
}

// DataType is one sync category and whether it is enabled.
type DataType struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Settings is the profile's sync configuration. Times are RFC 3339 when
// they could be decoded and the raw preference text otherwise.
type Settings struct {
	Enabled       bool       `json:"enabled"`
	FirstSyncTime string     `json:"first_sync_time"`
	LastSyncTime  string     `json:"last_sync_time"`
	DataTypes     []DataType `json:"data_types"`
}

// Info is everything known about a profile's sync state.
type Info struct {
	AccountInfo  AccountInfo            `json:"account_info"`
	SyncSettings Settings               `json:"sync_settings"`
	SyncedVisits []artifact.SyncedVisit `json:"synced_visits"`
}

// Empty returns an Info with non-nil slices.
func Empty() Info {
	return Info{
		SyncSettings: Settings{DataTypes: []DataType{}},
		SyncedVisits: []artifact.SyncedVisit{},
	}
}

// HasAccount reports whether any account detail was found.
func (i Info) HasAccount() bool {
	return i.AccountInfo.Email != "" || i.AccountInfo.Name != ""
}

// MarshalJSON keeps list fields as [] rather than null.
func (i Info) MarshalJSON() ([]byte, error) {
	type alias Info
	if i.SyncSettings.DataTypes == nil {
		i.SyncSettings.DataTypes = []DataType{}
	}
	if i.SyncedVisits == nil {
		i.SyncedVisits = []artifact.SyncedVisit{}
	}
	return json.Marshal(alias(i))
}

// SidecarPath returns where the profile preferences for the artifact at
// artifactPath are expected to be.
func SidecarPath(family artifact.Family, artifactPath string) string {
	name := "Preferences"
	if family == artifact.Firefox {
		name = "prefs.js"
	}
	return filepath.Join(filepath.Dir(artifactPath), name)
}

// Load parses the sidecar at path for family. A missing file is not an
// error and yields Empty().
func Load(family artifact.Family, path string) (Info, error) {
	if path == "" {
		return Empty(), nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Empty(), nil
	}
	if err != nil {
		return Empty(), fmt.Errorf("open sync sidecar: %w", err)
	}
	defer f.Close()

	if family == artifact.Firefox {
		return ParseFirefoxPrefs(f)
	}
	return ParseChromiumPreferences(f)
}

func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read sync sidecar: %w", err)
	}
	return data, nil
}
