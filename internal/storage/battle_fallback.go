package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"modelarena/internal/core"
)

// FallbackBattleStore prefers Redis and keeps a local write-through copy.
// When Redis stops answering it serves from the local copy and reports
// local-fallback; Redis is re-probed at most once per probe interval.
//
// While Redis is healthy it is the only source of truth: the local copy is
// read back only for battles last written during an outage. Those live only
// on this worker until the next healthy save pushes them to Redis.
type FallbackBattleStore struct {
	external      *RedisBattleStore
	local         *MemoryBattleStore
	logger        core.Logger
	probeInterval time.Duration
	now           func() time.Time

	mu        sync.Mutex
	degraded  bool
	lastProbe time.Time
	outage    map[string]struct{}
}

// NewFallbackBattleStore combines an external and a local store.
func NewFallbackBattleStore(external *RedisBattleStore, local *MemoryBattleStore, probeInterval time.Duration, logger core.Logger) *FallbackBattleStore {
	if probeInterval <= 0 {
		probeInterval = core.DefaultProbeInterval
	}
	return &FallbackBattleStore{
		external:      external,
		local:         local,
		logger:        logger,
		probeInterval: probeInterval,
		now:           time.Now,
		outage:        make(map[string]struct{}),
	}
}

// Save bumps the version once and writes to both stores.
func (f *FallbackBattleStore) Save(ctx context.Context, session *core.BattleSession, ttl time.Duration) error {
	session.Touch(f.now())

	written := false
	if f.useExternal(ctx) {
		err := f.external.put(ctx, session, ttl)
		switch {
		case err == nil:
			written = true
		case errors.Is(err, core.ErrStaleWrite), errors.Is(err, errCorruptRecord):
			return err
		default:
			f.markDegraded(err)
		}
	}

	if err := f.local.put(ctx, session, ttl); err != nil {
		return err
	}
	f.setOutageWrite(session.BattleID, !written)
	return nil
}

// Load reads Redis while it is reachable and the local copy otherwise. A
// local copy is preferred over Redis only when it was written during an
// outage and is newer. A battle Redis no longer has is dropped locally.
func (f *FallbackBattleStore) Load(ctx context.Context, battleID string) (*core.BattleSession, error) {
	if f.useExternal(ctx) {
		ext, err := f.external.Load(ctx, battleID)
		switch {
		case err == nil:
			if loc := f.outageCopy(ctx, battleID); loc != nil && loc.Version > ext.Version {
				return loc, nil
			}
			return ext, nil
		case errors.Is(err, core.ErrBattleNotFound):
			if loc := f.outageCopy(ctx, battleID); loc != nil {
				return loc, nil
			}
			f.setOutageWrite(battleID, false)
			_ = f.local.Delete(ctx, battleID)
			return nil, fmt.Errorf("%w: %s", core.ErrBattleNotFound, battleID)
		case errors.Is(err, errCorruptRecord):
			return nil, err
		default:
			f.markDegraded(err)
		}
	}

	return f.local.Load(ctx, battleID)
}

func (f *FallbackBattleStore) Delete(ctx context.Context, battleID string) error {
	if f.useExternal(ctx) {
		if err := f.external.Delete(ctx, battleID); err != nil {
			f.markDegraded(err)
		}
	}
	f.setOutageWrite(battleID, false)
	return f.local.Delete(ctx, battleID)
}

// outageCopy returns the local copy of a battle last saved while Redis was
// unreachable, or nil.
func (f *FallbackBattleStore) outageCopy(ctx context.Context, battleID string) *core.BattleSession {
	f.mu.Lock()
	_, ok := f.outage[battleID]
	f.mu.Unlock()
	if !ok {
		return nil
	}
	loc, err := f.local.Load(ctx, battleID)
	if err != nil {
		return nil
	}
	return loc
}

func (f *FallbackBattleStore) setOutageWrite(battleID string, outage bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if outage {
		f.outage[battleID] = struct{}{}
	} else {
		delete(f.outage, battleID)
	}
}

// Status reports external while Redis is in use, local-fallback otherwise.
func (f *FallbackBattleStore) Status() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.degraded {
		return core.StorageLocalFallback
	}
	return core.StorageExternal
}

func (f *FallbackBattleStore) Close() error {
	return errors.Join(f.external.Close(), f.local.Close())
}

// useExternal reports whether Redis should be tried, probing it when the
// store is degraded and the probe interval has passed.
func (f *FallbackBattleStore) useExternal(ctx context.Context) bool {
	f.mu.Lock()
	if !f.degraded {
		f.mu.Unlock()
		return true
	}
	now := f.now()
	if now.Sub(f.lastProbe) < f.probeInterval {
		f.mu.Unlock()
		return false
	}
	f.lastProbe = now
	f.mu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, core.RedisOpTimeout)
	defer cancel()
	if err := f.external.Ping(probeCtx); err != nil {
		f.logger.Debug("Redis still unreachable: %v", err)
		return false
	}

	f.mu.Lock()
	f.degraded = false
	f.mu.Unlock()
	f.logger.Info("Redis reachable again, battle store back to external")
	return true
}

func (f *FallbackBattleStore) markDegraded(err error) {
	f.mu.Lock()
	wasDegraded := f.degraded
	f.degraded = true
	f.lastProbe = f.now()
	f.mu.Unlock()

	if !wasDegraded {
		f.logger.Warn("Redis unreachable, battles fall back to this process: %v", err)
	}
}

var _ core.BattleStore = (*FallbackBattleStore)(nil)
