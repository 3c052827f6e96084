package utils

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheTTL = time.Hour
	cacheOpTimeout  = 2 * time.Second
)

// Cache is a best-effort Redis cache. A nil *Cache or a nil client turns
// every call into a miss, so callers never branch on availability.
type Cache struct {
	rc *redis.Client
}

// NewCache wraps rc; rc may be nil.
func NewCache(rc *redis.Client) *Cache {
	return &Cache{rc: rc}
}

func (c *Cache) enabled() bool { return c != nil && c.rc != nil }

// GetBytes returns cached bytes for a key.
func (c *Cache) GetBytes(ctx context.Context, key string) ([]byte, bool) {
	if !c.enabled() {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	b, err := c.rc.Get(ctx, key).Bytes()
	if err != nil {
		Sugar.Debugf("cache get miss key=%s err=%v", key, err)
		return nil, false
	}
	return b, true
}

// GetJSON decodes a cached JSON value into out.
func (c *Cache) GetJSON(ctx context.Context, key string, out interface{}) bool {
	b, ok := c.GetBytes(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		Sugar.Warnf("cache decode failed key=%s err=%v", key, err)
		return false
	}
	return true
}

// SetBytes stores bytes; ttl <= 0 means the default TTL.
func (c *Cache) SetBytes(ctx context.Context, key string, b []byte, ttl time.Duration) {
	if !c.enabled() {
		return
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := c.rc.Set(ctx, key, b, ttl).Err(); err != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// SetJSON marshals v and stores JSON bytes.
func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.SetBytes(ctx, key, b, ttl)
}

// InvalidateByPrefix deletes keys that match the given prefix using SCAN.
func (c *Cache) InvalidateByPrefix(ctx context.Context, prefix string) {
	if !c.enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // limit rounds to avoid long loops
		keys, cur, err := c.rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			Sugar.Warnf("cache invalidate scan failed prefix=%s err=%v", prefix, err)
			return
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := c.rc.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			return
		}
	}
}
