// Package rediscache wraps a storage.Adapter with a Redis
// read-through cache for the two lookups the handler performs most:
// LoadDescription and LoadDoE. Every write invalidates the
// corresponding key before returning, so the cache is strictly an
// optimisation and never a durability boundary: a reader always sees
// at least as fresh a value as going straight to the backing adapter.
//
// Grounded on the teacher's cache package: connection pooling,
// graceful "disabled" fallback when Redis is unreachable, JSON
// value serialisation, TTL.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agora-project/agorad/internal/aid"
	"github.com/agora-project/agorad/internal/logger"
	"github.com/agora-project/agorad/internal/model"
	"github.com/agora-project/agorad/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Config configures the Redis connection. Enabled=false (or a
// connection failure at construction time) produces a cache that
// simply delegates every call straight through to the wrapped
// adapter.
type Config struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
	TTL      time.Duration
}

// Cache wraps a storage.Adapter with description/DoE caching.
type Cache struct {
	storage.Adapter
	client *redis.Client
	ttl    time.Duration
}

// New wraps backend with a Redis cache per cfg.
func New(cfg Config, backend storage.Adapter) *Cache {
	if !cfg.Enabled {
		return &Cache{Adapter: backend}
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     25,
		MinIdleConns: 5,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Storage().Warn().Err(err).Msg("redis cache unreachable, running without a cache")
		return &Cache{Adapter: backend}
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{Adapter: backend, client: client, ttl: ttl}
}

func descKey(id aid.AID) string { return fmt.Sprintf("agora:desc:%s", id.String()) }
func doeKey(id aid.AID) string  { return fmt.Sprintf("agora:doe:%s", id.String()) }

// StoreDescription writes through the backend and invalidates the
// cached entry.
func (c *Cache) StoreDescription(ctx context.Context, id aid.AID, d model.Description) error {
	if err := c.Adapter.StoreDescription(ctx, id, d); err != nil {
		return err
	}
	c.invalidate(ctx, descKey(id))
	return nil
}

// LoadDescription serves from cache when possible, falling back to
// the backend and populating the cache on a miss.
func (c *Cache) LoadDescription(ctx context.Context, id aid.AID) (model.Description, bool, error) {
	if c.client == nil {
		return c.Adapter.LoadDescription(ctx, id)
	}
	var d model.Description
	if raw, err := c.client.Get(ctx, descKey(id)).Bytes(); err == nil {
		if jsonErr := json.Unmarshal(raw, &d); jsonErr == nil {
			return d, true, nil
		}
	}
	d, ok, err := c.Adapter.LoadDescription(ctx, id)
	if err == nil && ok {
		if raw, jsonErr := json.Marshal(d); jsonErr == nil {
			c.client.Set(ctx, descKey(id), raw, c.ttl)
		}
	}
	return d, ok, err
}

// StoreDoE writes through the backend and invalidates the cached
// entry.
func (c *Cache) StoreDoE(ctx context.Context, id aid.AID, remaining map[string]int) error {
	if err := c.Adapter.StoreDoE(ctx, id, remaining); err != nil {
		return err
	}
	c.invalidate(ctx, doeKey(id))
	return nil
}

// LoadDoE serves from cache when possible, falling back to the
// backend and populating the cache on a miss.
func (c *Cache) LoadDoE(ctx context.Context, id aid.AID) (map[string]int, bool, error) {
	if c.client == nil {
		return c.Adapter.LoadDoE(ctx, id)
	}
	var m map[string]int
	if raw, err := c.client.Get(ctx, doeKey(id)).Bytes(); err == nil {
		if jsonErr := json.Unmarshal(raw, &m); jsonErr == nil {
			return m, true, nil
		}
	}
	m, ok, err := c.Adapter.LoadDoE(ctx, id)
	if err == nil && ok {
		if raw, jsonErr := json.Marshal(m); jsonErr == nil {
			c.client.Set(ctx, doeKey(id), raw, c.ttl)
		}
	}
	return m, ok, err
}

// Erase delegates to the backend and drops both cached keys for id,
// so a subsequent recovery sweep never serves a stale cached entry
// for an application that was just wiped.
func (c *Cache) Erase(ctx context.Context, id aid.AID) error {
	if err := c.Adapter.Erase(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, descKey(id))
	c.invalidate(ctx, doeKey(id))
	return nil
}

func (c *Cache) invalidate(ctx context.Context, key string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		logger.Storage().Warn().Err(err).Str("key", key).Msg("failed to invalidate cache entry")
	}
}

// Close closes both the Redis client (if any) and the wrapped
// adapter.
func (c *Cache) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	return c.Adapter.Close()
}
