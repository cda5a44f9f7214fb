// Package redis opens the Redis client backing the work queue.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// New parses a redis:// or rediss:// URL, connects and pings.
func New(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse queue url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
