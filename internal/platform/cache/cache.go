// Package cache keeps finished lesson bundles in Redis.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-lessons/internal/platform/config"
)

const (
	dialTimeout = 5 * time.Second
	ioTimeout   = 3 * time.Second
)

// Conn is an open Redis connection together with the bundle cache that
// uses it.
type Conn struct {
	client  *redis.Client
	Bundles *BundleCache
}

// redisOptions parses a redis:// or rediss:// URL and applies the
// connection timeouts.
func redisOptions(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	opts.DialTimeout = dialTimeout
	opts.ReadTimeout = ioTimeout
	opts.WriteTimeout = ioTimeout
	return opts, nil
}

// Open connects to cfg.URL and fails unless the server answers PING.
func Open(ctx context.Context, cfg config.CacheConfig) (*Conn, error) {
	opts, err := redisOptions(cfg.URL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping cache at %s: %w", opts.Addr, err)
	}

	return &Conn{client: client, Bundles: NewBundleCache(client, cfg.TTL)}, nil
}

func (c *Conn) Close() error { return c.client.Close() }

func (c *Conn) Name() string { return "cache" }

func (c *Conn) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
