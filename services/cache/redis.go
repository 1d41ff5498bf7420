package cachesvc

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

const (
	keyPrefix          = "semindo:cache:"
	blacklistKeyPrefix = "semindo:token:blacklist:"
)

// NewRedisClient connects to redis and pings it.
func NewRedisClient(conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         conf.Redis.Addr,
		Password:     conf.Redis.Password,
		DB:           conf.Redis.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "connecting to redis")
	}
	return client, nil
}

// RedisCache implements core.Cache and core.TokenBlacklist on a redis client.
type RedisCache struct {
	client *redis.Client
}

var (
	_ core.Cache          = (*RedisCache)(nil)
	_ core.TokenBlacklist = (*RedisCache)(nil)
)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return "", core.ErrCacheMiss
	}
	if err != nil {
		return "", errors.Wrap(err, "redis get")
	}
	return val, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.Wrap(c.client.Set(ctx, keyPrefix+key, value, ttl).Err(), "redis set")
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = keyPrefix + k
	}
	return errors.Wrap(c.client.Del(ctx, prefixed...).Err(), "redis del")
}

func (c *RedisCache) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // already expired
	}
	return errors.Wrap(c.client.Set(ctx, blacklistKeyPrefix+tokenID, "1", ttl).Err(), "revoking token")
}

func (c *RedisCache) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := c.client.Exists(ctx, blacklistKeyPrefix+tokenID).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking token blacklist")
	}
	return n > 0, nil
}
