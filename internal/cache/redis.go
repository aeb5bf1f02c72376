package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/runnerr0/histlens/internal/analysis"
)

// Redis stores JSON-encoded bundles in Redis so several API instances can
// share results.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis wraps an already connected client. ttl <= 0 stores keys without
// expiry.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(id string) string {
	return r.prefix + "bundle:" + id
}

func (r *Redis) Get(ctx context.Context, id string) (*analysis.Bundle, bool, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get bundle: %w", err)
	}

	var b analysis.Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, false, fmt.Errorf("decode cached bundle: %w", err)
	}
	return &b, true, nil
}

func (r *Redis) Put(ctx context.Context, b *analysis.Bundle) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	ttl := r.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(b.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set bundle: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete bundle: %w", err)
	}
	return nil
}

// Len counts bundle keys under the prefix.
func (r *Redis) Len(ctx context.Context) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"bundle:*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan bundles: %w", err)
	}
	return n, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
