package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Correlation: CorrelationConfig{
			WindowMinutes:    60,
			MaxSources:       5,
			SameDomainLimit:  3,
			FilePatternLimit: 2,
		},
		History: HistoryConfig{
			PageSize:    1000,
			UploadDir:   "~/.config/histlens/uploads",
			KeepUploads: false,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			Capacity:   32,
			TTLMinutes: 60,
			Redis: RedisConfig{
				Addr:                  "localhost:6379",
				Username:              "",
				Password:              "",
				DB:                    0,
				KeyPrefix:             "histlens:",
				PoolSize:              10,
				DialTimeoutSeconds:    5,
				ConnectTimeoutSeconds: 30,
				RetryIntervalSeconds:  2,
				MaxWaitSeconds:        10,
				PingTimeoutSeconds:    5,
				WarnThreshold:         3,
			},
		},
		Storage: StorageConfig{
			Path:              "~/.config/histlens",
			SQLiteFile:        "histlens.db",
			SQLiteJournalMode: "wal",
		},
		Archive: ArchiveConfig{
			Enabled:            true,
			RetentionDays:      30,
			PruneIntervalMin:   60,
			UseDefaultDenylist: false,
			DenylistCategories: []string{},
			DenylistDomains:    []string{},
		},
		Server: ServerConfig{
			Host:                   "127.0.0.1",
			Port:                   5000,
			MaxRequestSize:         536870912,
			ShutdownTimeoutSeconds: 5,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Pretty:   false,
			AuditLog: true,
		},
	}
}
