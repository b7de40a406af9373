package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const levelKeyPrefix = "membership-sync:previous-level:"

// Connect initializes a Redis client from URL or host:port input.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisLevelCache shares entries between processes, so a pre-change hook and
// its post-change handler may run in different workers.
type RedisLevelCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLevelCache(client *redis.Client, ttl time.Duration) *RedisLevelCache {
	if ttl <= 0 {
		ttl = DefaultLevelTTL
	}
	return &RedisLevelCache{client: client, ttl: ttl}
}

func (c *RedisLevelCache) Put(ctx context.Context, userID string, levelID uint) error {
	return c.client.Set(ctx, levelKeyPrefix+userID, levelID, c.ttl).Err()
}

func (c *RedisLevelCache) Get(ctx context.Context, userID string) (uint, bool, error) {
	raw, err := c.client.Get(ctx, levelKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("decode cached level for %s: %w", userID, err)
	}
	return uint(n), true, nil
}

func (c *RedisLevelCache) Delete(ctx context.Context, userID string) error {
	return c.client.Del(ctx, levelKeyPrefix+userID).Err()
}
