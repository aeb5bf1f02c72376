package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 60, cfg.Correlation.WindowMinutes)
	assert.Equal(t, time.Hour, cfg.Correlation.Window())
	assert.Equal(t, 5, cfg.Correlation.MaxSources)
	assert.Equal(t, 3, cfg.Correlation.SameDomainLimit)
	assert.Equal(t, 2, cfg.Correlation.FilePatternLimit)
	assert.Equal(t, 1000, cfg.History.PageSize)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, time.Hour, cfg.Cache.TTL())
	assert.Equal(t, "histlens:", cfg.Cache.Redis.KeyPrefix)
	assert.Equal(t, "~/.config/histlens", cfg.Storage.Path)
	assert.Equal(t, "histlens.db", cfg.Storage.SQLiteFile)
	assert.Equal(t, "wal", cfg.Storage.SQLiteJournalMode)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, 30, cfg.Archive.RetentionDays)
	assert.Equal(t, 30*24*time.Hour, cfg.Archive.Retention())
	assert.Equal(t, time.Hour, cfg.Archive.PruneInterval())
	assert.Equal(t, "127.0.0.1:5000", cfg.Server.Addr())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultDenylistIsPopulated(t *testing.T) {
	domains := DefaultDenylistDomains()
	assert.Greater(t, len(domains), 10)
	assert.Contains(t, domains, "chase.com")
	assert.Contains(t, domains, "1password.com")
}

func TestArchiveDenylist(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Archive.DenylistDomains = []string{"secret.org"}
	assert.Equal(t, []string{"secret.org"}, cfg.ArchiveDenylist())

	cfg.Archive.UseDefaultDenylist = true
	list := cfg.ArchiveDenylist()
	assert.Contains(t, list, "chase.com")
	assert.Contains(t, list, "secret.org")

	cfg.Archive.DenylistCategories = []string{"Health"}
	list = cfg.ArchiveDenylist()
	assert.Contains(t, list, "mychart.com")
	assert.NotContains(t, list, "chase.com")
	assert.Equal(t, "secret.org", list[len(list)-1])
}

func TestDenylistCategories(t *testing.T) {
	assert.Equal(t, []string{"banking", "credentials", "government", "health", "investing", "payroll"}, DenylistCategories())
	assert.Equal(t, []string{"workday.com", "adp.com", "gusto.com", "paychex.com"}, DefaultDenylistDomains("payroll"))
	assert.Empty(t, DefaultDenylistDomains("nope"))

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	cfg.Archive.DenylistCategories = []string{"banking", "social"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown category "social"`)

	cfg = DefaultConfig()
	cfg.Archive.RetentionDays = -1
	assert.Error(t, cfg.Validate())
}

func TestLoadValidYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
correlation:
  window_minutes: 90
  max_sources: 8
cache:
  backend: "redis"
  redis:
    addr: "cache:6379"
server:
  port: 9999
logging:
  level: "debug"
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(yamlContent), 0644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Minute, cfg.Correlation.Window())
	assert.Equal(t, 8, cfg.Correlation.MaxSources)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Non-overridden values remain defaults
	assert.Equal(t, 3, cfg.Correlation.SameDomainLimit)
	assert.Equal(t, "histlens:", cfg.Cache.Redis.KeyPrefix)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoadInvalidYAMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(":::not valid yaml{{{"), 0644))

	_, err := Load(cfgPath)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownCacheBackend(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("cache:\n  backend: memcached\n"), 0644))

	_, err := Load(cfgPath)
	assert.ErrorContains(t, err, "cache.backend")
}

func TestLoadNonExistentFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing", "config.yaml"))
	assert.Error(t, err)
}

func TestLoadOrCreateCreatesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sub", "deep", "config.yaml")

	cfg, err := LoadOrCreateAt(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Correlation.WindowMinutes)

	_, statErr := os.Stat(cfgPath)
	assert.NoError(t, statErr)

	cfg2, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Correlation, cfg2.Correlation)
	assert.Equal(t, cfg.Cache.Redis, cfg2.Cache.Redis)
}

func TestLoadOrCreateLoadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("archive:\n  retention_days: 7\n"), 0644))

	cfg, err := LoadOrCreateAt(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Archive.RetentionDays)
	assert.True(t, cfg.Archive.Enabled)
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("server:\n  port: 7000\n"), 0644))

	t.Setenv("HISTLENS_SERVER_PORT", "7100")
	t.Setenv("HISTLENS_LOG_LEVEL", "warn")
	t.Setenv("HISTLENS_PRETTY_LOG", "not-a-bool")

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Pretty)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("HISTLENS_TEST_DOTENV=from-file\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("HISTLENS_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(envPath))
	assert.Equal(t, "from-file", os.Getenv("HISTLENS_TEST_DOTENV"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env")))
}

func TestDBPathExpandsHome(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Path = "/var/lib/histlens"

	p, err := cfg.DBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/var/lib/histlens", "histlens.db"), p)
}
