// Package cache provides a small byte cache with redis and in-memory providers
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/click-sentinel/config"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Store is a key/value cache with per-entry expiry
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// NewStore returns the provider selected by cfg. rc is only used by the redis provider.
// A disabled cache yields a store that never hits.
func NewStore(cfg config.CacheConfig, rc *redis.Client) (Store, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}
	switch cfg.Provider {
	case "redis":
		if rc == nil {
			return nil, errors.New("redis provider selected without a redis client")
		}
		return NewRedisStore(rc, cfg.RedisPrefix), nil
	case "memory":
		return NewMemoryStore(cfg.MaxEntries)
	default:
		return nil, fmt.Errorf("unknown cache provider %q", cfg.Provider)
	}
}

// GetJSON decodes a cached JSON value into dst
func GetJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// a corrupt entry is treated as a miss and dropped
		_ = s.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}

// SetJSON stores v encoded as JSON
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	return s.Set(ctx, key, raw, ttl)
}

// Noop never stores anything
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Noop) Delete(context.Context, ...string) error                  { return nil }
