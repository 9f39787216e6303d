// Package storage persists battle sessions and backend call statistics.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"modelarena/internal/core"
	"modelarena/internal/util"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// FileStorage implements stats persistence using a JSON file
type FileStorage struct {
	filePath string
}

func NewFileStorage(filePath string) *FileStorage {
	if filePath == "" {
		filePath = core.StatsFilePath
	}
	return &FileStorage{filePath: filePath}
}

func (fs *FileStorage) SaveStats(stats *core.RequestStats) error {
	data, err := sonic.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	return os.WriteFile(fs.filePath, data, core.FilePermissionReadWrite)
}

func (fs *FileStorage) LoadStats() (*core.RequestStats, error) {
	data, err := os.ReadFile(fs.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &core.RequestStats{RequestHistory: []core.RequestRecord{}}, nil
		}
		return nil, err
	}
	return decodeStats(data)
}

func (fs *FileStorage) Close() error {
	return nil
}

// RedisStorage implements stats persistence using Redis
type RedisStorage struct {
	client *redis.Client
	ctx    context.Context
	key    string
}

// NewRedisStorage stores stats under <prefix>:stats.
func NewRedisStorage(client *redis.Client, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = core.DefaultKeyPrefix
	}
	return &RedisStorage{client: client, ctx: context.Background(), key: Key(prefix, "stats")}
}

func (rs *RedisStorage) SaveStats(stats *core.RequestStats) error {
	data, err := util.MarshalJSON(stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	return rs.client.Set(rs.ctx, rs.key, data, 0).Err()
}

func (rs *RedisStorage) LoadStats() (*core.RequestStats, error) {
	val, err := rs.client.Get(rs.ctx, rs.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &core.RequestStats{RequestHistory: []core.RequestRecord{}}, nil
		}
		return nil, err
	}
	return decodeStats(val)
}

func (rs *RedisStorage) Close() error {
	return rs.client.Close()
}

func decodeStats(data []byte) (*core.RequestStats, error) {
	var stats core.RequestStats
	if err := sonic.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}
	if stats.RequestHistory == nil {
		stats.RequestHistory = []core.RequestRecord{}
	}
	return &stats, nil
}

// InitStorage picks Redis stats storage when redisURL is reachable and falls
// back to the stats file otherwise.
func InitStorage(ctx context.Context, redisURL, filePath, prefix string, logger core.Logger) core.StorageInterface {
	if redisURL != "" {
		client, err := NewRedisClient(ctx, redisURL)
		if err != nil {
			logger.Warn("Failed to initialize Redis stats storage: %v, falling back to file storage", err)
			return NewFileStorage(filePath)
		}
		logger.Info("Using Redis stats storage")
		return NewRedisStorage(client, prefix)
	}

	logger.Info("Using file stats storage at %s", filePath)
	return NewFileStorage(filePath)
}

// InitBattleStore returns a Redis-backed store with local fallback when
// redisURL is set and reachable, and a process-local store otherwise. An
// unreachable Redis at startup still yields the fallback store so it can
// recover once Redis comes up.
func InitBattleStore(ctx context.Context, redisURL, prefix string, strict bool, probeInterval time.Duration, logger core.Logger) (core.BattleStore, error) {
	local := NewMemoryBattleStore(core.CacheDefaultCapacity, strict, logger)
	if redisURL == "" {
		logger.Info("Battle store: local only")
		return local, nil
	}

	opts, err := redisOptions(redisURL)
	if err != nil {
		_ = local.Close()
		return nil, err
	}

	external := NewRedisBattleStore(redis.NewClient(opts), prefix, strict)
	store := NewFallbackBattleStore(external, local, probeInterval, logger)

	pingCtx, cancel := context.WithTimeout(ctx, core.RedisOpTimeout)
	defer cancel()
	if err := external.Ping(pingCtx); err != nil {
		store.markDegraded(err)
	} else {
		logger.Info("Battle store: redis with local fallback")
	}
	return store, nil
}
