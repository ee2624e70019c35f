package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/storymine-hq/storymine-engine/pkg/config"
)

// NewRedisClient creates a Redis client for the stats cache.
// Returns nil if caching is disabled.
func NewRedisClient(ctx context.Context, cfg *config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
