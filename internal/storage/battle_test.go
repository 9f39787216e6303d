package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"modelarena/internal/core"

	"github.com/alicebob/miniredis/v2"
)

func newRedisStore(t *testing.T, mr *miniredis.Miniredis, strict bool) *RedisBattleStore {
	t.Helper()
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisClient failed: %v", err)
	}
	store := NewRedisBattleStore(client, "test", strict)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newMemoryStore(t *testing.T, strict bool) *MemoryBattleStore {
	t.Helper()
	store := NewMemoryBattleStore(100, strict, &core.NopLogger{})
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleSession(id string) *core.BattleSession {
	return &core.BattleSession{
		BattleID:          id,
		Prompt:            "compare",
		AllModels:         []string{"A", "B", "C"},
		CachedResponses:   map[string]string{"A": "alpha"},
		UnavailableModels: []string{"B"},
		RemainingModels:   []string{"A", "B", "C"},
		WinnerChain:       []string{},
		EliminatedModels:  []string{},
		CurrentPair:       []string{"A", "B"},
		FinalRanking:      []string{},
		Votes:             []core.VoteRecord{},
	}
}

func TestBattleStores_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	stores := map[string]core.BattleStore{
		"redis":  newRedisStore(t, mr, false),
		"memory": newMemoryStore(t, false),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := sampleSession("battle-" + name)

			if err := store.Save(ctx, s, time.Hour); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if s.Version != 1 || s.UpdatedAt == 0 {
				t.Errorf("Save should bump version and timestamp, got v%d at %d", s.Version, s.UpdatedAt)
			}

			loaded, err := store.Load(ctx, s.BattleID)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if loaded.CachedResponses["A"] != "alpha" || !loaded.IsUnavailable("B") || loaded.Version != 1 {
				t.Errorf("Loaded record differs: %+v", loaded)
			}

			loaded.CachedResponses["A"] = "mutated"
			again, _ := store.Load(ctx, s.BattleID)
			if again.CachedResponses["A"] != "alpha" {
				t.Error("Loads must return independent copies")
			}

			if err := store.Delete(ctx, s.BattleID); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, err := store.Load(ctx, s.BattleID); !errors.Is(err, core.ErrBattleNotFound) {
				t.Errorf("Expected ErrBattleNotFound after delete, got %v", err)
			}
		})
	}
}

func TestRedisBattleStore_KeyAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	store := newRedisStore(t, mr, false)

	if err := store.Save(context.Background(), sampleSession("abc"), 10*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !mr.Exists("test:battle:abc") {
		t.Fatal("Expected key test:battle:abc")
	}
	if ttl := mr.TTL("test:battle:abc"); ttl != 10*time.Minute {
		t.Errorf("Expected 10m TTL, got %v", ttl)
	}

	mr.FastForward(11 * time.Minute)
	if _, err := store.Load(context.Background(), "abc"); !errors.Is(err, core.ErrBattleNotFound) {
		t.Errorf("Expired battle should be not found, got %v", err)
	}
}

func TestBattleStores_StrictRejectsStaleWrite(t *testing.T) {
	mr := miniredis.RunT(t)
	stores := map[string]core.BattleStore{
		"redis":  newRedisStore(t, mr, true),
		"memory": newMemoryStore(t, true),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Save(ctx, sampleSession("race"), time.Hour); err != nil {
				t.Fatalf("Initial save failed: %v", err)
			}

			first, _ := store.Load(ctx, "race")
			second, _ := store.Load(ctx, "race")

			first.Round = 1
			if err := store.Save(ctx, first, time.Hour); err != nil {
				t.Fatalf("First writer should win: %v", err)
			}
			second.Round = 1
			if err := store.Save(ctx, second, time.Hour); !errors.Is(err, core.ErrStaleWrite) {
				t.Errorf("Expected ErrStaleWrite for the second writer, got %v", err)
			}
		})
	}
}

func TestMemoryBattleStore_Status(t *testing.T) {
	if got := newMemoryStore(t, false).Status(); got != core.StorageLocalFallback {
		t.Errorf("Expected %s, got %s", core.StorageLocalFallback, got)
	}
}

func TestFallbackBattleStore_Outage(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	worker1 := NewFallbackBattleStore(newRedisStore(t, mr, false), newMemoryStore(t, false), time.Hour, &core.NopLogger{})
	clock := time.Now()
	worker1.now = func() time.Time { return clock }

	if err := worker1.Save(ctx, sampleSession("before"), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if worker1.Status() != core.StorageExternal {
		t.Errorf("Expected external status, got %s", worker1.Status())
	}
	if !mr.Exists("test:battle:before") {
		t.Error("Healthy save should reach Redis")
	}

	mr.Close()

	if err := worker1.Save(ctx, sampleSession("during"), time.Hour); err != nil {
		t.Fatalf("Save during outage should succeed locally: %v", err)
	}
	if worker1.Status() != core.StorageLocalFallback {
		t.Errorf("Expected local-fallback status, got %s", worker1.Status())
	}
	if _, err := worker1.Load(ctx, "during"); err != nil {
		t.Errorf("Worker should still serve its own battle: %v", err)
	}

	if err := mr.Restart(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}

	worker2 := NewFallbackBattleStore(newRedisStore(t, mr, false), newMemoryStore(t, false), time.Hour, &core.NopLogger{})
	if _, err := worker2.Load(ctx, "during"); !errors.Is(err, core.ErrBattleNotFound) {
		t.Errorf("Another worker must not see a battle written during the outage, got %v", err)
	}
	if _, err := worker2.Load(ctx, "before"); err != nil {
		t.Errorf("Battle saved before the outage should be shared: %v", err)
	}

	clock = clock.Add(2 * time.Hour)
	if _, err := worker1.Load(ctx, "during"); err != nil {
		t.Errorf("Local copy should survive recovery: %v", err)
	}
	if worker1.Status() != core.StorageExternal {
		t.Errorf("Expected recovery to external after probe, got %s", worker1.Status())
	}
}

func TestFallbackBattleStore_PrefersNewerOutageCopy(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	worker1 := NewFallbackBattleStore(newRedisStore(t, mr, false), newMemoryStore(t, false), time.Minute, &core.NopLogger{})
	clock := time.Now()
	worker1.now = func() time.Time { return clock }

	s := sampleSession("split")
	if err := worker1.Save(ctx, s, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	mr.Close()
	s.Round = 1
	if err := worker1.Save(ctx, s, time.Hour); err != nil {
		t.Fatalf("Save during outage failed: %v", err)
	}
	if err := mr.Restart(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	clock = clock.Add(2 * time.Minute)

	loaded, err := worker1.Load(ctx, "split")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Round != 1 || loaded.Version != 2 {
		t.Fatalf("Expected the newer outage copy, got round %d v%d", loaded.Round, loaded.Version)
	}

	if err := worker1.Save(ctx, loaded, time.Hour); err != nil {
		t.Fatalf("Save after recovery failed: %v", err)
	}
	worker2 := NewFallbackBattleStore(newRedisStore(t, mr, false), newMemoryStore(t, false), time.Minute, &core.NopLogger{})
	shared, err := worker2.Load(ctx, "split")
	if err != nil || shared.Round != 1 {
		t.Errorf("Healthy save should publish the outage copy, got %+v, %v", shared, err)
	}
}

func TestFallbackBattleStore_IgnoresStaleLocalCopy(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	newWorker := func() *FallbackBattleStore {
		return NewFallbackBattleStore(newRedisStore(t, mr, false), newMemoryStore(t, false), time.Minute, &core.NopLogger{})
	}
	worker1, worker2 := newWorker(), newWorker()

	tests := []struct {
		name   string
		remove func(id string)
	}{
		{"expired in redis", func(id string) {
			s, err := worker2.Load(ctx, id)
			if err != nil {
				t.Fatalf("Load on worker 2 failed: %v", err)
			}
			s.Round = 1
			s.Completed = true
			if err := worker2.Save(ctx, s, 10*time.Minute); err != nil {
				t.Fatalf("Save on worker 2 failed: %v", err)
			}
			mr.FastForward(11 * time.Minute)
		}},
		{"deleted by another worker", func(id string) {
			if err := worker2.Delete(ctx, id); err != nil {
				t.Fatalf("Delete on worker 2 failed: %v", err)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := "stale-" + tt.name
			if err := worker1.Save(ctx, sampleSession(id), time.Hour); err != nil {
				t.Fatalf("Save on worker 1 failed: %v", err)
			}
			tt.remove(id)

			if s, err := worker1.Load(ctx, id); !errors.Is(err, core.ErrBattleNotFound) {
				t.Fatalf("Worker 1 must not serve its old copy, got %+v, %v", s, err)
			}
			if mr.Exists("test:battle:" + id) {
				t.Error("The old copy must not be written back to Redis")
			}
			if _, err := worker1.local.Load(ctx, id); !errors.Is(err, core.ErrBattleNotFound) {
				t.Errorf("Local copy should be dropped, got %v", err)
			}
		})
	}
}
