// Package cache keeps rendered profiles around so repeated client polls do
// not hammer the upstream subscription endpoint. Lookups go through an
// in-process LRU first and an optional Redis tier second; concurrent misses
// for the same key are collapsed to a single fill.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

type Cache struct {
	local *expirable.LRU[string, string]
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

// New builds a cache with the given local capacity and entry TTL. rdb may be
// nil, in which case only the in-process tier is used.
func New(capacity int, ttl time.Duration, rdb *redis.Client) *Cache {
	if capacity <= 0 {
		capacity = 64
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{
		local: expirable.NewLRU[string, string](capacity, nil, ttl),
		rdb:   rdb,
		ttl:   ttl,
	}
}

// Key derives a stable cache key from its parts. Parts that may contain
// secrets (subscription URLs) are hashed rather than embedded.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return "convertor:" + hex.EncodeToString(sum[:16])
}

// GetOrFill returns the cached value for key, filling it via fill on a miss.
// Only one fill per key runs at a time; other callers share its result.
// Redis errors degrade to a plain fill instead of failing the request.
func (c *Cache) GetOrFill(ctx context.Context, key string, fill func(ctx context.Context) (string, error)) (string, error) {
	if v, ok := c.local.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// An abandoned caller must not cancel a fill that other callers
		// share; the fill's own timeouts still bound it.
		ctx := context.WithoutCancel(ctx)

		if v, ok := c.local.Get(key); ok {
			return v, nil
		}
		if c.rdb != nil {
			if v, err := c.rdb.Get(ctx, key).Result(); err == nil {
				c.local.Add(key, v)
				return v, nil
			}
		}

		v, err := fill(ctx)
		if err != nil {
			return "", err
		}
		c.local.Add(key, v)
		if c.rdb != nil {
			_ = c.rdb.Set(ctx, key, v, c.ttl).Err()
		}
		return v, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops key from every tier.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.local.Remove(key)
	if c.rdb != nil {
		_ = c.rdb.Del(ctx, key).Err()
	}
}
