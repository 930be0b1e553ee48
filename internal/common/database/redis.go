// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"safety-rating/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient holds the connection used for history idempotency claims.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis builds a client from cfg. Unset pool and timeout fields fall back
// to the defaults in redisOptions.
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	return &RedisClient{Client: redis.NewClient(redisOptions(cfg))}, nil
}

func redisOptions(cfg config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  orDefault(cfg.DialTimeout, 5*time.Second),
		ReadTimeout:  orDefault(cfg.ReadTimeout, 3*time.Second),
		WriteTimeout: orDefault(cfg.WriteTimeout, 3*time.Second),
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 10
	}
	if opts.MinIdleConns < 0 || opts.MinIdleConns > opts.PoolSize {
		opts.MinIdleConns = 0
	}
	return opts
}

func orDefault(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return config.GetDuration(ms)
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
