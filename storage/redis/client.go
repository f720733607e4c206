// Package redis implements the shared parts of the storage layer on Redis.
//
// FingerprintIndex lets several ingest processes agree on which records are
// already stored. StatusMirror publishes job snapshots for readers outside the
// process that owns the job.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// kvClient is the subset of Redis commands used by this package.
type kvClient interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Close() error
}

// redisClient adapts *redis.Client to kvClient.
type redisClient struct {
	client *redis.Client
}

// newRedisClient connects to the Redis server at addr.
func newRedisClient(addr string) *redisClient {
	return &redisClient{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (c *redisClient) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

func (c *redisClient) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (c *redisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *redisClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

func (c *redisClient) Close() error {
	return c.client.Close()
}
