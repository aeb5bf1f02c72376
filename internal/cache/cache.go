// Package cache holds processed bundles between requests, keyed by
// artifact id.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/histlens/internal/analysis"
	"github.com/runnerr0/histlens/internal/config"
	"github.com/runnerr0/histlens/internal/logger"
)

// Cache stores bundles by ID. Implementations are safe for concurrent use.
type Cache interface {
	// Get returns the bundle for id. A miss is (nil, false, nil).
	Get(ctx context.Context, id string) (*analysis.Bundle, bool, error)
	// Put stores b under b.ID, replacing any previous bundle.
	Put(ctx context.Context, b *analysis.Bundle) error
	Delete(ctx context.Context, id string) error
	Len(ctx context.Context) (int, error)
	Close() error
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.CacheConfig, log logger.Logger) (Cache, error) {
	switch cfg.Backend {
	case "", "memory":
		log.Debug("using memory cache", logger.Int("capacity", cfg.Capacity), logger.Duration("ttl", cfg.TTL()))
		return NewMemory(cfg.Capacity, cfg.TTL()), nil
	case "redis":
		r := cfg.Redis
		client, err := Connect(ctx, ConnectOptions{
			Addr:           r.Addr,
			User:           r.Username,
			Password:       r.Password,
			RedisDB:        r.DB,
			PoolSize:       r.PoolSize,
			DialTimeout:    seconds(r.DialTimeoutSeconds),
			ConnectTimeout: seconds(r.ConnectTimeoutSeconds),
			RetryInterval:  seconds(r.RetryIntervalSeconds),
			MaxWait:        seconds(r.MaxWaitSeconds),
			PingTimeout:    seconds(r.PingTimeoutSeconds),
			WarnThreshold:  r.WarnThreshold,
		}, log)
		if err != nil {
			return nil, err
		}
		return NewRedis(client, r.KeyPrefix, cfg.TTL()), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
