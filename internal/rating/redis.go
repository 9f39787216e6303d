package rating

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"modelarena/internal/core"
	"modelarena/internal/storage"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares ratings between workers. Each model is a hash
// (rating, wins, losses, games); a SETNX claim key per match keeps updates
// idempotent, and deltas are applied with HINCRBYFLOAT so concurrent matches
// of the same model do not overwrite each other.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	initial float64
}

// NewRedisStore wraps client. The store owns the client and closes it on Close.
func NewRedisStore(client *redis.Client, prefix string, initial float64) *RedisStore {
	if prefix == "" {
		prefix = core.DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, initial: initial}
}

func (r *RedisStore) modelKey(id string) string {
	return storage.Key(r.prefix, "rating", "model", id)
}

func (r *RedisStore) claimKey(matchKey string) string {
	return storage.Key(r.prefix, "rating", "applied", matchKey)
}

func (r *RedisStore) indexKey() string {
	return storage.Key(r.prefix, "rating", "models")
}

func (r *RedisStore) Apply(ctx context.Context, matchKey, winnerID, loserID string, update core.RatingUpdate) (bool, error) {
	claimed, err := r.client.SetNX(ctx, r.claimKey(matchKey), winnerID, core.RatingClaimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim match %s: %w", matchKey, err)
	}
	if !claimed {
		return false, nil
	}

	w, err := r.Get(ctx, winnerID)
	if err != nil {
		return false, r.release(ctx, matchKey, err)
	}
	l, err := r.Get(ctx, loserID)
	if err != nil {
		return false, r.release(ctx, matchKey, err)
	}
	newW, newL := update(w.Rating, l.Rating)

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		r.bump(ctx, pipe, winnerID, newW-w.Rating, "wins")
		r.bump(ctx, pipe, loserID, newL-l.Rating, "losses")
		return nil
	})
	if err != nil {
		return false, r.release(ctx, matchKey, fmt.Errorf("failed to apply match %s: %w", matchKey, err))
	}
	return true, nil
}

func (r *RedisStore) bump(ctx context.Context, pipe redis.Pipeliner, id string, delta float64, outcome string) {
	key := r.modelKey(id)
	pipe.HSetNX(ctx, key, "rating", r.initial)
	pipe.HIncrByFloat(ctx, key, "rating", delta)
	pipe.HIncrBy(ctx, key, outcome, 1)
	pipe.HIncrBy(ctx, key, "games", 1)
	pipe.SAdd(ctx, r.indexKey(), id)
}

// release drops the claim so a failed update can be retried.
func (r *RedisStore) release(ctx context.Context, matchKey string, cause error) error {
	if err := r.client.Del(ctx, r.claimKey(matchKey)).Err(); err != nil {
		return errors.Join(cause, fmt.Errorf("failed to release claim %s: %w", matchKey, err))
	}
	return cause
}

func (r *RedisStore) Get(ctx context.Context, modelID string) (core.RatingEntry, error) {
	fields, err := r.client.HGetAll(ctx, r.modelKey(modelID)).Result()
	if err != nil {
		return core.RatingEntry{}, fmt.Errorf("failed to read rating for %s: %w", modelID, err)
	}
	return r.parseEntry(modelID, fields)
}

func (r *RedisStore) parseEntry(modelID string, fields map[string]string) (core.RatingEntry, error) {
	e := core.RatingEntry{ModelID: modelID, Rating: r.initial}
	if v, ok := fields["rating"]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return e, fmt.Errorf("bad rating for %s: %w", modelID, err)
		}
		e.Rating = f
	}
	for name, dst := range map[string]*int64{"wins": &e.Wins, "losses": &e.Losses, "games": &e.Games} {
		if v, ok := fields[name]; ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return e, fmt.Errorf("bad %s for %s: %w", name, modelID, err)
			}
			*dst = n
		}
	}
	return e, nil
}

func (r *RedisStore) List(ctx context.Context) ([]core.RatingEntry, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rated models: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, r.modelKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read ratings: %w", err)
	}

	out := make([]core.RatingEntry, 0, len(ids))
	for i, id := range ids {
		e, err := r.parseEntry(id, cmds[i].Val())
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

var _ core.RatingStore = (*RedisStore)(nil)
