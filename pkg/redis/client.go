package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Payphone-Digital/account-service/config"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client wraps a go-redis client and namespaces every key with a prefix.
type Client struct {
	rdb    *redis.Client
	prefix string
}

func NewClient(cfg *config.Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddress(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.Database,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolTimeout:  cfg.Redis.PoolTimeout,
	})

	client := NewFromClient(rdb, cfg.Redis.KeyPrefix)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		logger.GetLogger().Error("Failed to connect to Redis",
			zap.String("address", cfg.RedisAddress()),
			zap.Error(err),
		)
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.GetLogger().Info("Successfully connected to Redis",
		zap.String("address", cfg.RedisAddress()),
		zap.Int("database", cfg.Redis.Database),
	)

	return client, nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(rdb *redis.Client, prefix string) *Client {
	return &Client{rdb: rdb, prefix: prefix}
}

// Raw exposes the underlying client for list and script commands.
func (c *Client) Raw() *redis.Client {
	return c.rdb
}

// Key returns name under the configured prefix.
func (c *Client) Key(name string) string {
	return c.prefix + name
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetString stores value under key. A non-positive ttl keeps the key forever.
func (c *Client) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.rdb.Set(ctx, c.Key(key), value, ttl).Err(); err != nil {
		logger.GetLogger().Error("Failed to set cache",
			zap.String("key", key),
			zap.Duration("ttl", ttl),
			zap.Error(err),
		)
		return fmt.Errorf("failed to set cache: %w", err)
	}

	logger.GetLogger().Debug("Cache set successfully",
		zap.String("key", key),
		zap.Duration("ttl", ttl),
	)
	return nil
}

// GetString reports found=false on a cache miss.
func (c *Client) GetString(ctx context.Context, key string) (string, bool, error) {
	value, err := c.rdb.Get(ctx, c.Key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		logger.GetLogger().Error("Failed to get cache",
			zap.String("key", key),
			zap.Error(err),
		)
		return "", false, fmt.Errorf("failed to get cache: %w", err)
	}
	return value, true, nil
}

// PoolStats summarises the connection pool for health output.
func (c *Client) PoolStats() map[string]string {
	stats := c.rdb.PoolStats()
	return map[string]string{
		"hits":        strconv.FormatUint(uint64(stats.Hits), 10),
		"misses":      strconv.FormatUint(uint64(stats.Misses), 10),
		"timeouts":    strconv.FormatUint(uint64(stats.Timeouts), 10),
		"total_conns": strconv.FormatUint(uint64(stats.TotalConns), 10),
		"idle_conns":  strconv.FormatUint(uint64(stats.IdleConns), 10),
		"stale_conns": strconv.FormatUint(uint64(stats.StaleConns), 10),
	}
}
