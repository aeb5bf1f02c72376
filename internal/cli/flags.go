package cli

import (
	"io"

	"github.com/runnerr0/histlens/internal/storage"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	DBPath  string `long:"db-path" description:"Archive database path (overrides config)"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable debug logging on stderr"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// IngestCommand processes a history database and archives the result.
type IngestCommand struct {
	File    string `long:"file" description:"History database to ingest (required)"`
	Browser string `long:"browser" description:"Browser family: chrome | firefox (default: detect from file name)"`
	Sidecar string `long:"sidecar" description:"Preferences or prefs.js file (default: next to --file)"`
	ID      string `long:"id" description:"Artifact ID (default: generated)"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore // injectable for testing
}

// OpenCommand prints one archived artifact.
type OpenCommand struct {
	ID     string `long:"id" description:"Artifact ID (required)"`
	Format string `long:"format" description:"Output format: full | sources | downloads | sync | json" default:"full"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
}

// SearchCommand searches archived visits by keyword with filters.
type SearchCommand struct {
	Since    string `long:"since" description:"Only visits newer than duration (e.g., 7d, 24h, 2w)"`
	Until    string `long:"until" description:"Only visits older than duration"`
	Domain   string `long:"domain" description:"Filter by domain"`
	Artifact string `long:"artifact" description:"Filter by artifact ID"`
	Limit    int    `long:"limit" description:"Maximum results" default:"20"`
	Offset   int    `long:"offset" description:"Skip first N results" default:"0"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
}

// ExportCommand writes one archived artifact as CSV or JSON.
type ExportCommand struct {
	ID     string `long:"id" description:"Artifact ID (required)"`
	Type   string `long:"type" description:"Data: history | downloads | sources | domains | timeline | sync" default:"history"`
	Format string `long:"format" description:"Encoding: csv | json" default:"csv"`
	Out    string `long:"out" description:"Output file, or directory for the default file name (default: stdout)"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
}

// ServeCommand runs the HTTP API.
type ServeCommand struct {
	Host string `long:"host" description:"Override listen host"`
	Port int    `long:"port" description:"Override listen port"`

	globals *GlobalFlags
	version string
}

// StatusCommand shows archive statistics and the archived artifacts.
type StatusCommand struct {
	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
}

// PruneCommand removes artifacts processed before the retention cutoff.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g., 30d)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`
	Force     bool   `long:"force" description:"Skip confirmation prompt"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
	stdin   io.Reader // nil means os.Stdin
}

// DeleteCommand removes one archived artifact.
type DeleteCommand struct {
	ID    string `long:"id" description:"Artifact ID (required)"`
	Force bool   `long:"force" description:"Skip confirmation prompt"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
	stdin   io.Reader
}

// PurgeCommand deletes the whole archive with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
	stdin   io.Reader
}
