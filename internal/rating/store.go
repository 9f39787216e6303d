package rating

import (
	"context"
	"fmt"

	"modelarena/internal/core"
	"modelarena/internal/storage"
)

// StoreOptions selects and configures a rating store.
type StoreOptions struct {
	Backend   string
	RedisURL  string
	KeyPrefix string
	DBPath    string
	Initial   float64
}

// OpenStore opens the configured rating store. With no backend named it uses
// Redis when reachable and memory otherwise.
func OpenStore(ctx context.Context, opts StoreOptions, logger core.Logger) (core.RatingStore, error) {
	switch opts.Backend {
	case core.RatingsBackendSQLite:
		return OpenSQLiteStore(opts.DBPath, opts.Initial, logger)
	case core.RatingsBackendMemory:
		logger.Info("Ratings kept in memory")
		return NewMemoryStore(opts.Initial), nil
	case core.RatingsBackendRedis:
		client, err := storage.NewRedisClient(ctx, opts.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("ratings backend redis: %w", err)
		}
		return NewRedisStore(client, opts.KeyPrefix, opts.Initial), nil
	case "":
		if opts.RedisURL != "" {
			client, err := storage.NewRedisClient(ctx, opts.RedisURL)
			if err == nil {
				logger.Info("Ratings shared through Redis")
				return NewRedisStore(client, opts.KeyPrefix, opts.Initial), nil
			}
			logger.Warn("Redis unavailable for ratings, using memory: %v", err)
		}
		return NewMemoryStore(opts.Initial), nil
	default:
		return nil, fmt.Errorf("unknown ratings backend %q", opts.Backend)
	}
}
