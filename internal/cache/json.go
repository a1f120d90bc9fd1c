package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ProfileKeyPrefix = "agora:profile:%d"
	ProfileTTL       = 5 * time.Minute
)

// ProfileKey is the cache key of an author profile.
func ProfileKey(userID uint) string {
	return fmt.Sprintf(ProfileKeyPrefix, userID)
}

// JSONCache stores JSON documents in Redis. A nil client turns every call into a miss.
type JSONCache struct {
	client *redis.Client
}

// NewJSONCache wraps client.
func NewJSONCache(client *redis.Client) *JSONCache {
	return &JSONCache{client: client}
}

// Enabled reports whether a Redis client is configured.
func (c *JSONCache) Enabled() bool {
	return c != nil && c.client != nil
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (c *JSONCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func (c *JSONCache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, b, ttl).Err()
}

// MGetJSON fetches several keys at once. decode is called for each hit with
// the key's index; misses and undecodable entries are reported in the
// returned slice of indexes.
func (c *JSONCache) MGetJSON(ctx context.Context, keys []string, decode func(i int, raw []byte) error) ([]int, error) {
	misses := make([]int, 0, len(keys))
	if !c.Enabled() || len(keys) == 0 {
		for i := range keys {
			misses = append(misses, i)
		}
		return misses, nil
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			misses = append(misses, i)
			continue
		}
		if err := decode(i, []byte(s)); err != nil {
			misses = append(misses, i)
		}
	}
	return misses, nil
}

// Invalidate removes key. Failures are ignored; entries expire on their own.
func (c *JSONCache) Invalidate(ctx context.Context, key string) {
	if c.Enabled() {
		c.client.Del(ctx, key)
	}
}

// Aside tries Redis first; on a miss it calls fetch, which must populate
// dest, then stores dest with ttl. Cache read and write failures fall
// through to fetch.
func (c *JSONCache) Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if found, err := c.GetJSON(ctx, key, dest); err == nil && found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	_ = c.SetJSON(ctx, key, dest, ttl)
	return nil
}
