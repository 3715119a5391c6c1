package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cun0/vessel-notify/internal/config"
	"github.com/cun0/vessel-notify/internal/jsonlog"
)

const cachePrefix = "vessel-notify:logged-in:"

// Cache stores short-lived auth answers.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// NewRedisClient returns nil, nil when no URL is configured.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, cachePrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, cachePrefix+key, value, ttl).Err()
}

// CachedChecker remembers positive answers for ttl. Negative answers and errors are
// never cached, so a logout or a new user is seen on the next call.
// Cache failures are logged and the service is asked directly.
type CachedChecker struct {
	next   Checker
	cache  Cache
	ttl    time.Duration
	logger *jsonlog.Logger
}

func NewCachedChecker(next Checker, cache Cache, ttl time.Duration, logger *jsonlog.Logger) *CachedChecker {
	return &CachedChecker{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedChecker) IsLoggedIn(ctx context.Context, userID string) (bool, error) {
	if c.ttl <= 0 {
		return c.next.IsLoggedIn(ctx, userID)
	}

	v, ok, err := c.cache.Get(ctx, userID)
	if err != nil {
		c.logger.PrintWarn("auth cache read failed", map[string]string{
			"component": "auth_cache",
			"error":     err.Error(),
		})
	} else if ok && v == "1" {
		return true, nil
	}

	loggedIn, err := c.next.IsLoggedIn(ctx, userID)
	if err != nil || !loggedIn {
		return loggedIn, err
	}

	if err := c.cache.Set(ctx, userID, "1", c.ttl); err != nil {
		c.logger.PrintWarn("auth cache write failed", map[string]string{
			"component": "auth_cache",
			"error":     err.Error(),
		})
	}
	return true, nil
}
