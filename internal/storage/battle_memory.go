package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"modelarena/internal/cache"
	"modelarena/internal/core"
)

// MemoryBattleStore keeps battles in a process-local TTL cache. Records are
// stored encoded, so every Load returns an independent copy.
type MemoryBattleStore struct {
	cache  *cache.LRUCache
	strict bool
	mu     sync.Mutex
}

// NewMemoryBattleStore creates a store holding at most capacity battles.
func NewMemoryBattleStore(capacity int, strict bool, logger core.Logger) *MemoryBattleStore {
	c := cache.NewCache(
		cache.WithCapacity(capacity),
		cache.WithEvictHook(func(key string) {
			logger.Warn("Battle %s evicted from local store (capacity %d)", key, capacity)
		}),
	)
	return &MemoryBattleStore{cache: c, strict: strict}
}

// Save bumps the session version and overwrites the stored record.
func (s *MemoryBattleStore) Save(ctx context.Context, session *core.BattleSession, ttl time.Duration) error {
	session.Touch(time.Now())
	return s.put(ctx, session, ttl)
}

func (s *MemoryBattleStore) put(_ context.Context, session *core.BattleSession, ttl time.Duration) error {
	data, err := encodeSession(session)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.strict {
		if raw, ok := s.cache.Get(session.BattleID); ok {
			stored, err := storedVersion(raw.([]byte))
			if err != nil {
				return err
			}
			if err := checkVersion(session.BattleID, stored, session.Version); err != nil {
				return err
			}
		}
	}
	s.cache.Set(session.BattleID, data, ttl)
	return nil
}

// Load returns the stored battle or core.ErrBattleNotFound.
func (s *MemoryBattleStore) Load(_ context.Context, battleID string) (*core.BattleSession, error) {
	raw, ok := s.cache.Get(battleID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrBattleNotFound, battleID)
	}
	return decodeSession(raw.([]byte))
}

func (s *MemoryBattleStore) Delete(_ context.Context, battleID string) error {
	s.cache.Delete(battleID)
	return nil
}

// Status is always local-fallback: battles held here do not survive a
// failover to another worker.
func (s *MemoryBattleStore) Status() string {
	return core.StorageLocalFallback
}

func (s *MemoryBattleStore) Close() error {
	return s.cache.Close()
}

var _ core.BattleStore = (*MemoryBattleStore)(nil)
