package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/runnerr0/histlens/internal/config"
	"github.com/runnerr0/histlens/internal/correlate"
	"github.com/runnerr0/histlens/internal/logger"
	"github.com/runnerr0/histlens/internal/storage"
)

// session is what a command needs to touch the archive.
type session struct {
	cfg    *config.Config
	log    logger.Logger
	store  *storage.SQLiteStore
	dbPath string
	owned  bool
}

// Close releases the store unless it was injected.
func (s *session) Close() {
	if s.owned && s.store != nil {
		s.store.Close()
	}
	s.log.Sync()
}

// loadConfig reads --config (created with defaults when missing) or the
// default config path, after loading .env from the working directory.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	if err := config.LoadDotEnv(""); err != nil {
		return nil, err
	}
	if globals == nil || globals.Config == "" {
		cfg, err := config.LoadOrCreate()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}
	path, err := config.ExpandPath(globals.Config)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrCreateAt(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger; --verbose forces debug level.
func newLogger(globals *GlobalFlags, cfg *config.Config) logger.Logger {
	level := cfg.Logging.Level
	if globals != nil && globals.Verbose {
		level = "debug"
	}
	return logger.New(level, cfg.Logging.Pretty)
}

// resolveDBPath determines the archive database file path.
// Priority: --db-path flag > config file > default config.
func resolveDBPath(globals *GlobalFlags, cfg *config.Config) (string, error) {
	if globals != nil && globals.DBPath != "" {
		return config.ExpandPath(globals.DBPath)
	}
	return cfg.DBPath()
}

// openSession loads config and opens the archive. An injected store is
// used as is and left open on Close.
func openSession(ctx context.Context, globals *GlobalFlags, injected *storage.SQLiteStore) (*session, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: newLogger(globals, cfg)}

	if injected != nil {
		s.store = injected
		s.dbPath = ":memory:"
		return s, nil
	}

	s.dbPath, err = resolveDBPath(globals, cfg)
	if err != nil {
		return nil, err
	}
	s.store, err = openStore(ctx, s.dbPath, cfg, s.log)
	if err != nil {
		return nil, err
	}
	s.owned = true
	return s, nil
}

// openStore opens the archive at dbPath with migrations applied and the
// configured denylist seeded into the exclusion rules.
func openStore(ctx context.Context, dbPath string, cfg *config.Config, log logger.Logger) (*storage.SQLiteStore, error) {
	store, err := storage.Open(ctx, dbPath, storage.OpenOptions{
		JournalMode: cfg.Storage.SQLiteJournalMode,
		Audit:       cfg.Logging.AuditLog,
	})
	if err != nil {
		return nil, err
	}
	if domains := cfg.ArchiveDenylist(); len(domains) > 0 {
		n, err := store.SeedExclusions(ctx, domains)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("seed exclusions: %w", err)
		}
		if n > 0 {
			log.Debug("seeded archive exclusions", logger.Int64("added", n))
		}
	}
	return store, nil
}

// newEngine builds the correlation engine from the correlation section.
func newEngine(cfg *config.Config) *correlate.Engine {
	return correlate.New(correlate.Options{
		Window:           cfg.Correlation.Window(),
		MaxSources:       cfg.Correlation.MaxSources,
		SameDomainLimit:  cfg.Correlation.SameDomainLimit,
		FilePatternLimit: cfg.Correlation.FilePatternLimit,
	})
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// confirm asks question on stdout and reads one answer line from in.
func confirm(in io.Reader, question string) (string, error) {
	if in == nil {
		in = os.Stdin
	}
	fmt.Print(question)
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return "", fmt.Errorf("aborted: no input received")
	}
	return strings.TrimSpace(scanner.Text()), nil
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, or m suffix)", s)
	}
}

// formatDurationHuman formats a duration into a human-readable string like "30 days".
func formatDurationHuman(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours > 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}

// plural returns word with an "s" unless n is 1.
func plural(n int64, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
