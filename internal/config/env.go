package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with any HISTLENS_* variables that are set.
// Unparseable numbers and booleans are ignored.
func ApplyEnv(cfg *Config) {
	cfg.Correlation.WindowMinutes = getenvInt("HISTLENS_CORRELATION_WINDOW_MINUTES", cfg.Correlation.WindowMinutes)
	cfg.Correlation.MaxSources = getenvInt("HISTLENS_CORRELATION_MAX_SOURCES", cfg.Correlation.MaxSources)

	cfg.History.PageSize = getenvInt("HISTLENS_PAGE_SIZE", cfg.History.PageSize)
	cfg.History.UploadDir = getenv("HISTLENS_UPLOAD_DIR", cfg.History.UploadDir)

	cfg.Cache.Backend = getenv("HISTLENS_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.Capacity = getenvInt("HISTLENS_CACHE_CAPACITY", cfg.Cache.Capacity)
	cfg.Cache.TTLMinutes = getenvInt("HISTLENS_CACHE_TTL_MINUTES", cfg.Cache.TTLMinutes)
	cfg.Cache.Redis.Addr = getenv("HISTLENS_REDIS_ADDR", cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Username = getenv("HISTLENS_REDIS_USERNAME", cfg.Cache.Redis.Username)
	cfg.Cache.Redis.Password = getenv("HISTLENS_REDIS_PASSWORD", cfg.Cache.Redis.Password)
	cfg.Cache.Redis.DB = getenvInt("HISTLENS_REDIS_DB", cfg.Cache.Redis.DB)

	cfg.Storage.Path = getenv("HISTLENS_STORAGE_PATH", cfg.Storage.Path)
	cfg.Archive.Enabled = getenvBool("HISTLENS_ARCHIVE_ENABLED", cfg.Archive.Enabled)
	cfg.Archive.RetentionDays = getenvInt("HISTLENS_RETENTION_DAYS", cfg.Archive.RetentionDays)

	cfg.Server.Host = getenv("HISTLENS_SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getenvInt("HISTLENS_SERVER_PORT", cfg.Server.Port)

	cfg.Logging.Level = getenv("HISTLENS_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Pretty = getenvBool("HISTLENS_PRETTY_LOG", cfg.Logging.Pretty)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}
