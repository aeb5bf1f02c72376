package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/histlens/config.yaml"

// Config holds all histlens configuration.
type Config struct {
	Correlation CorrelationConfig `yaml:"correlation"`
	History     HistoryConfig     `yaml:"history"`
	Cache       CacheConfig       `yaml:"cache"`
	Storage     StorageConfig     `yaml:"storage"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type CorrelationConfig struct {
	WindowMinutes    int `yaml:"window_minutes"`
	MaxSources       int `yaml:"max_sources"`
	SameDomainLimit  int `yaml:"same_domain_limit"`
	FilePatternLimit int `yaml:"file_pattern_limit"`
}

// Window is the correlation look-back window.
func (c CorrelationConfig) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

type HistoryConfig struct {
	PageSize    int    `yaml:"page_size"`
	UploadDir   string `yaml:"upload_dir"`
	KeepUploads bool   `yaml:"keep_uploads"`
}

type CacheConfig struct {
	Backend    string      `yaml:"backend"`
	Capacity   int         `yaml:"capacity"`
	TTLMinutes int         `yaml:"ttl_minutes"`
	Redis      RedisConfig `yaml:"redis"`
}

// TTL is how long a cached bundle stays valid; zero means forever.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

type RedisConfig struct {
	Addr                  string `yaml:"addr"`
	Username              string `yaml:"username"`
	Password              string `yaml:"password"`
	DB                    int    `yaml:"db"`
	KeyPrefix             string `yaml:"key_prefix"`
	PoolSize              int    `yaml:"pool_size"`
	DialTimeoutSeconds    int    `yaml:"dial_timeout_seconds"`
	ConnectTimeoutSeconds int    `yaml:"connect_timeout_seconds"`
	RetryIntervalSeconds  int    `yaml:"retry_interval_seconds"`
	MaxWaitSeconds        int    `yaml:"max_wait_seconds"`
	PingTimeoutSeconds    int    `yaml:"ping_timeout_seconds"`
	WarnThreshold         int    `yaml:"warn_threshold"`
}

type StorageConfig struct {
	Path              string `yaml:"path"`
	SQLiteFile        string `yaml:"sqlite_file"`
	SQLiteJournalMode string `yaml:"sqlite_journal_mode"`
}

type ArchiveConfig struct {
	Enabled            bool     `yaml:"enabled"`
	RetentionDays      int      `yaml:"retention_days"`
	PruneIntervalMin   int      `yaml:"prune_interval_minutes"`
	UseDefaultDenylist bool     `yaml:"use_default_denylist"`
	DenylistCategories []string `yaml:"denylist_categories"`
	DenylistDomains    []string `yaml:"denylist_domains"`
}

// Retention is how long archived artifacts are kept; zero keeps them forever.
func (a ArchiveConfig) Retention() time.Duration {
	return time.Duration(a.RetentionDays) * 24 * time.Hour
}

// PruneInterval is how often serve applies retention; zero disables it.
func (a ArchiveConfig) PruneInterval() time.Duration {
	return time.Duration(a.PruneIntervalMin) * time.Minute
}

type ServerConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	MaxRequestSize         int64  `yaml:"max_request_size"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// Addr is the host:port the API listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Pretty   bool   `yaml:"pretty"`
	AuditLog bool   `yaml:"audit_log"`
}

// Load reads a YAML config file at path, merges it with defaults and
// applies HISTLENS_* environment overrides.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot work.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for the redis backend")
	}
	if c.Correlation.WindowMinutes <= 0 {
		return fmt.Errorf("correlation.window_minutes must be > 0, got %d", c.Correlation.WindowMinutes)
	}
	if c.Correlation.MaxSources <= 0 {
		return fmt.Errorf("correlation.max_sources must be > 0, got %d", c.Correlation.MaxSources)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Archive.RetentionDays < 0 {
		return fmt.Errorf("archive.retention_days must be >= 0, got %d", c.Archive.RetentionDays)
	}
	return validateDenylistCategories(c.Archive.DenylistCategories)
}

// DBPath returns the expanded path of the archive database.
func (c *Config) DBPath() (string, error) {
	dir, err := ExpandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// ArchiveDenylist is the configured denylist, plus the built-in one (or
// its selected categories) when enabled.
func (c *Config) ArchiveDenylist() []string {
	domains := make([]string, 0, len(c.Archive.DenylistDomains))
	if c.Archive.UseDefaultDenylist {
		domains = append(domains, DefaultDenylistDomains(c.Archive.DenylistCategories...)...)
	}
	return append(domains, c.Archive.DenylistDomains...)
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		ApplyEnv(cfg)
		return cfg, cfg.Validate()
	}

	return Load(path)
}
