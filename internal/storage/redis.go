package storage

import (
	"context"
	"fmt"

	"modelarena/internal/core"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses url, applies arena timeouts and checks connectivity.
// The caller owns the returned client.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redisOptions(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, core.RedisOpTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func redisOptions(url string) (*redis.Options, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = core.RedisDialTimeout
	opts.ReadTimeout = core.RedisOpTimeout
	opts.WriteTimeout = core.RedisOpTimeout
	opts.MaxRetries = 1
	return opts, nil
}

// Key joins a key prefix and parts with ':'.
func Key(prefix string, parts ...string) string {
	key := prefix
	for _, p := range parts {
		key += ":" + p
	}
	return key
}
