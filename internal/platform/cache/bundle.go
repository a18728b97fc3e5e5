package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-lessons/internal/lesson"
)

const (
	// DefaultTTL is how long a bundle stays cached.
	DefaultTTL = 24 * time.Hour

	keyPrefix = "lesson:v1:"
)

// keyNamespace scopes the name-based uuids used as cache keys.
var keyNamespace = uuid.MustParse("8f3c2a4e-5b1d-4e6f-9a7c-1d2e3f4a5b6c")

// KV is the subset of the Redis client the bundle cache uses.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// BundleCache stores finished lesson bundles. Degraded bundles are never
// stored, so a later request retries generation.
type BundleCache struct {
	kv  KV
	ttl time.Duration
}

// NewBundleCache creates a bundle cache. A non-positive ttl selects
// DefaultTTL.
func NewBundleCache(kv KV, ttl time.Duration) *BundleCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &BundleCache{kv: kv, ttl: ttl}
}

// Key derives the cache key for a request from its identifying parts.
func Key(parts ...string) string {
	return keyPrefix + uuid.NewSHA1(keyNamespace, []byte(strings.Join(parts, "\x1f"))).String()
}

// Get returns the bundle cached under key. Cache errors are logged and
// reported as a miss.
func (c *BundleCache) Get(ctx context.Context, key string) (*lesson.Bundle, bool) {
	data, err := c.kv.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "bundle cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var b lesson.Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		slog.WarnContext(ctx, "bundle cache entry is corrupt", "key", key, "error", err)
		return nil, false
	}
	return &b, true
}

// Put stores b under key unless it is degraded. It reports whether the
// bundle was stored.
func (c *BundleCache) Put(ctx context.Context, key string, b *lesson.Bundle) bool {
	if b == nil || b.Degraded() {
		return false
	}
	data, err := json.Marshal(b)
	if err != nil {
		slog.WarnContext(ctx, "bundle cache encode failed", "key", key, "error", err)
		return false
	}
	if err := c.kv.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "bundle cache write failed", "key", key, "error", err)
		return false
	}
	return true
}
