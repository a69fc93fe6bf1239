package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements the Cache interface on a shared Redis instance,
// so multiple orchestrator replicas see the same consensus results.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis at addr. The connection is verified
// with a ping so misconfiguration surfaces at startup, not first lookup.
func NewRedisCache(addr string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisCache{client: client}, nil
}

// Get retrieves a value. A Redis error is treated as a miss; the cache
// must never fail a verification request.
func (c *RedisCache) Get(key string) ([]byte, bool) {
	val, err := c.client.Get(context.Background(), key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set stores a value with the given TTL.
func (c *RedisCache) Set(key string, value []byte, ttl time.Duration) error {
	return c.client.Set(context.Background(), key, value, ttl).Err()
}

// Delete removes a value.
func (c *RedisCache) Delete(key string) error {
	err := c.client.Del(context.Background(), key).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// Clear removes all values in the selected database.
func (c *RedisCache) Clear() error {
	return c.client.FlushDB(context.Background()).Err()
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
