package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "coindash:history:"

// Redis caches market-data responses with a fixed TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisWithClient(client, ttl), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cached history: %w", err)
	}
	return data, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, keyPrefix+key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache history: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
