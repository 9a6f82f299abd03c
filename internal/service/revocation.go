package service

import (
	"context"
	"time"

	"github.com/Payphone-Digital/account-service/internal/constants"
	"github.com/Payphone-Digital/account-service/pkg/cache"
	"github.com/Payphone-Digital/account-service/pkg/redis"
)

// RevocationCache records logged-out tokens until they would have expired.
type RevocationCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

func revokedTokenKey(token string) string {
	return constants.CacheKeyRevokedToken + token
}

// RedisRevocationCache shares revocations across every API replica.
type RedisRevocationCache struct {
	client *redis.Client
}

func NewRedisRevocationCache(client *redis.Client) *RedisRevocationCache {
	return &RedisRevocationCache{client: client}
}

func (c *RedisRevocationCache) Get(ctx context.Context, key string) (string, bool, error) {
	return c.client.GetString(ctx, key)
}

func (c *RedisRevocationCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.SetString(ctx, key, value, ttl)
}

// MemoryRevocationCache is used when Redis is disabled. Revocations are
// local to the process.
type MemoryRevocationCache struct {
	cache *cache.Cache
}

func NewMemoryRevocationCache(c *cache.Cache) *MemoryRevocationCache {
	return &MemoryRevocationCache{cache: c}
}

func (c *MemoryRevocationCache) Get(_ context.Context, key string) (string, bool, error) {
	value, ok := c.cache.Get(key)
	if !ok {
		return "", false, nil
	}
	s, _ := value.(string)
	return s, true, nil
}

func (c *MemoryRevocationCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.cache.Set(key, value, ttl)
	return nil
}
