package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"modelarena/internal/core"

	"github.com/redis/go-redis/v9"
)

// RedisBattleStore keeps battles in Redis so any worker can serve any battle.
type RedisBattleStore struct {
	client *redis.Client
	prefix string
	strict bool
}

// NewRedisBattleStore wraps client. The store owns the client and closes it on Close.
func NewRedisBattleStore(client *redis.Client, prefix string, strict bool) *RedisBattleStore {
	if prefix == "" {
		prefix = core.DefaultKeyPrefix
	}
	return &RedisBattleStore{client: client, prefix: prefix, strict: strict}
}

func (s *RedisBattleStore) key(battleID string) string {
	return Key(s.prefix, "battle", battleID)
}

// Save bumps the session version and overwrites the stored record.
func (s *RedisBattleStore) Save(ctx context.Context, session *core.BattleSession, ttl time.Duration) error {
	session.Touch(time.Now())
	return s.put(ctx, session, ttl)
}

func (s *RedisBattleStore) put(ctx context.Context, session *core.BattleSession, ttl time.Duration) error {
	data, err := encodeSession(session)
	if err != nil {
		return err
	}
	key := s.key(session.BattleID)

	if !s.strict {
		if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
			return fmt.Errorf("failed to save battle %s: %w", session.BattleID, err)
		}
		return nil
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			stored, err := storedVersion(raw)
			if err != nil {
				return err
			}
			if err := checkVersion(session.BattleID, stored, session.Version); err != nil {
				return err
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("%w: battle %s changed during save", core.ErrStaleWrite, session.BattleID)
	case errors.Is(err, core.ErrStaleWrite), errors.Is(err, errCorruptRecord):
		return err
	default:
		return fmt.Errorf("failed to save battle %s: %w", session.BattleID, err)
	}
}

// Load returns the stored battle or core.ErrBattleNotFound.
func (s *RedisBattleStore) Load(ctx context.Context, battleID string) (*core.BattleSession, error) {
	raw, err := s.client.Get(ctx, s.key(battleID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", core.ErrBattleNotFound, battleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load battle %s: %w", battleID, err)
	}
	return decodeSession(raw)
}

// Delete removes the battle. Deleting a missing battle is not an error.
func (s *RedisBattleStore) Delete(ctx context.Context, battleID string) error {
	if err := s.client.Del(ctx, s.key(battleID)).Err(); err != nil {
		return fmt.Errorf("failed to delete battle %s: %w", battleID, err)
	}
	return nil
}

// Ping checks that Redis answers.
func (s *RedisBattleStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisBattleStore) Status() string {
	return core.StorageExternal
}

func (s *RedisBattleStore) Close() error {
	return s.client.Close()
}

var _ core.BattleStore = (*RedisBattleStore)(nil)
