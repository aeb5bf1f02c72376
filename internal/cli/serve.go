package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/runnerr0/histlens/internal/analysis"
	"github.com/runnerr0/histlens/internal/cache"
	"github.com/runnerr0/histlens/internal/config"
	"github.com/runnerr0/histlens/internal/httpserver"
	"github.com/runnerr0/histlens/internal/httpserver/deps"
	"github.com/runnerr0/histlens/internal/logger"
	"github.com/runnerr0/histlens/internal/scheduler"
	"github.com/runnerr0/histlens/internal/storage"
)

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(c.globals, cfg)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	uploadDir, err := config.ExpandPath(cfg.History.UploadDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	bundles, err := cache.New(ctx, cfg.Cache, log)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer func() {
		if err := bundles.Close(); err != nil {
			log.Warnf("failed to close cache: %v", err)
		}
	}()

	d := deps.Deps{
		Logger:          log,
		StartTime:       time.Now(),
		Version:         c.version,
		Processor:       analysis.NewProcessor(newEngine(cfg), log),
		Cache:           bundles,
		UploadDir:       uploadDir,
		DefaultPageSize: cfg.History.PageSize,
		MaxRequestSize:  cfg.Server.MaxRequestSize,
	}

	var store *storage.SQLiteStore
	if cfg.Archive.Enabled {
		dbPath, err := resolveDBPath(c.globals, cfg)
		if err != nil {
			return err
		}
		store, err = openStore(ctx, dbPath, cfg, log)
		if err != nil {
			return err
		}
		defer store.Close()
		d.Archive = store
		log.Info("archive opened", logger.String("path", dbPath))
	} else {
		log.Info("archive disabled; results live only in the cache")
	}

	var retention *scheduler.Retention
	if interval := cfg.Archive.PruneInterval(); interval > 0 && cfg.Archive.Retention() > 0 {
		var pruner scheduler.Pruner
		if store != nil {
			pruner = store
		}
		retention = scheduler.NewRetention(pruner, uploadDir, cfg.History.KeepUploads, log, interval, cfg.Archive.Retention())
		if err := retention.Start(ctx); err != nil {
			return fmt.Errorf("start retention: %w", err)
		}
		log.Info("retention job started",
			logger.Duration("interval", interval),
			logger.Int("retention_days", cfg.Archive.RetentionDays),
			logger.Bool("keep_uploads", cfg.History.KeepUploads))
	}

	server := httpserver.New(cfg.Server, log, d)
	log.Infof("histlens %s serving on %s", c.version, server.Addr())

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully")
	case err := <-errCh:
		return err
	}

	if retention != nil {
		retention.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	return nil
}
