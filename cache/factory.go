package cache

import (
	"fmt"
	"time"
)

const defaultCleanupInterval = 1 * time.Hour

// CacheConfig represents the cache configuration
type CacheConfig struct {
	Enabled bool
	Type    string // "redis" or "memory"
	Redis   RedisConfig
	Memory  MemoryConfig
}

// MemoryConfig represents memory cache configuration
type MemoryConfig struct {
	MaxSize         int
	CleanupInterval time.Duration
	EnableLRU       bool
}

// NewCache creates a cache instance based on the configuration
func NewCache(cfg CacheConfig) (Cache, error) {
	if !cfg.Enabled {
		return NewNoOpCache(), nil
	}

	switch cfg.Type {
	case "memory":
		return NewMemoryCache(
			cfg.Memory.MaxSize,
			cfg.Memory.CleanupInterval,
			cfg.Memory.EnableLRU,
		), nil

	case "redis":
		return NewRedisCache(cfg.Redis)

	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}
