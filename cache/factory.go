package cache

import (
	"fmt"
	"log"

	"github.com/anoixa/pattern-vault/cache/memory"
	"github.com/anoixa/pattern-vault/cache/redis"
	"github.com/anoixa/pattern-vault/config"
)

const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// NewProvider 根据 cache_type 创建缓存提供者
func NewProvider(cfg *config.Config) (Provider, error) {
	var (
		provider Provider
		err      error
	)

	switch cfg.CacheType {
	case "", TypeMemory:
		provider, err = memory.NewMemory(memory.DefaultConfig())
	case TypeRedis:
		provider, err = redis.NewRedisFromConfig(&redis.Config{
			Address:      cfg.CacheRedisAddr,
			Password:     cfg.CacheRedisPassword,
			DB:           cfg.CacheRedisDB,
			PoolSize:     10,
			MinIdleConns: 2,
		})
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.CacheType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s cache: %w", cfg.CacheType, err)
	}

	log.Printf("[Cache] using provider %s", provider.Name())
	return provider, nil
}
