package scopes

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const brandingVersionKey = "branding:version"

// BrandingCache caches effective-branding lookups in Redis. A mutation
// anywhere in a tree can change the effective branding of every
// descendant, so invalidation bumps a shared version instead of deleting
// individual keys.
type BrandingCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewBrandingCache instantiates the cache helper.
func NewBrandingCache(client *redis.Client, ttl time.Duration) *BrandingCache {
	return &BrandingCache{client: client, ttl: ttl}
}

// Effective loads the cached effective branding for a scope, populating
// it through the loader on a miss. Concurrent misses for the same scope
// share a single loader call.
func (c *BrandingCache) Effective(ctx context.Context, scopeID string, loader func(context.Context) (*Branding, error)) (*Branding, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key, err := c.buildKey(ctx, scopeID)
	if err != nil {
		return loader(ctx)
	}

	cached, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var branding *Branding
		if jsonErr := json.Unmarshal(cached, &branding); jsonErr == nil {
			return branding, nil
		}
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		branding, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if data, jsonErr := json.Marshal(branding); jsonErr == nil {
			_ = c.client.Set(ctx, key, data, c.ttl).Err()
		}
		return branding, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Branding), nil
}

// Bump invalidates all cached branding by advancing the version.
func (c *BrandingCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, brandingVersionKey).Err()
}

func (c *BrandingCache) buildKey(ctx context.Context, scopeID string) (string, error) {
	ver, err := c.client.Get(ctx, brandingVersionKey).Int64()
	if err == redis.Nil {
		ver = 1
		if err := c.client.Set(ctx, brandingVersionKey, ver, 0).Err(); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("branding:effective:%s:%d", scopeID, ver), nil
}
