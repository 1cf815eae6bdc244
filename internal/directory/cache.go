package directory

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "directory:version"

// Cache stores listing windows in Redis under a global version so a single
// bump invalidates everything.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// Key composes the versioned cache key for a query.
func (c *Cache) Key(ctx context.Context, q Query) (string, error) {
	base := listKey(q)
	if c == nil || c.client == nil {
		return base, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return base + ":" + strconv.FormatInt(ver, 10), nil
}

// Get loads a cached listing. The boolean reports a hit.
func (c *Cache) Get(ctx context.Context, key string) (Listing, bool, error) {
	if c == nil || c.client == nil {
		return Listing{}, false, nil
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Listing{}, false, nil
	}
	if err != nil {
		return Listing{}, false, err
	}
	var listing Listing
	if err := json.Unmarshal(payload, &listing); err != nil {
		return Listing{}, false, err
	}
	return listing, true, nil
}

// Put stores a listing with the configured TTL.
func (c *Cache) Put(ctx context.Context, key string, listing Listing) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(listing)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Bump invalidates every cached window by incrementing the global version.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

// listKey keeps the filter's case: the upstream decides whether matching is
// case-insensitive, so "Leanne" and "leanne" may be different windows.
func listKey(q Query) string {
	return strings.Join([]string{
		"directory", "list",
		strconv.Itoa(q.Start),
		strconv.Itoa(q.Limit),
		q.NameLike,
	}, ":")
}
