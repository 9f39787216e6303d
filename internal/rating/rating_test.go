package rating

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"modelarena/internal/core"

	"github.com/alicebob/miniredis/v2"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestExpected(t *testing.T) {
	tests := []struct {
		name   string
		ra, rb float64
		want   float64
	}{
		{"equal ratings", 1000, 1000, 0.5},
		{"400 points ahead", 1400, 1000, 10.0 / 11.0},
		{"400 points behind", 1000, 1400, 1.0 / 11.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expected(tt.ra, tt.rb); !almostEqual(got, tt.want) {
				t.Errorf("Expected(%v, %v) = %v, want %v", tt.ra, tt.rb, got, tt.want)
			}
		})
	}
}

func TestEloUpdate(t *testing.T) {
	w, l := EloUpdate(32)(1000, 1000)
	if !almostEqual(w, 1016) || !almostEqual(l, 984) {
		t.Errorf("Expected 1016/984, got %v/%v", w, l)
	}

	w, l = EloUpdate(32)(1400, 1000)
	if w-1400 >= 16 || !almostEqual(w+l, 2400) {
		t.Errorf("Favourite should gain less than 16 and total must be kept, got %v/%v", w, l)
	}
}

func testStores(t *testing.T) map[string]core.RatingStore {
	t.Helper()
	mr := miniredis.RunT(t)
	ctx := context.Background()

	redisStore, err := OpenStore(ctx, StoreOptions{Backend: core.RatingsBackendRedis, RedisURL: "redis://" + mr.Addr(), KeyPrefix: "test", Initial: 1000}, &core.NopLogger{})
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	sqliteStore, err := OpenStore(ctx, StoreOptions{Backend: core.RatingsBackendSQLite, DBPath: filepath.Join(t.TempDir(), "ratings.db"), Initial: 1000}, &core.NopLogger{})
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}

	stores := map[string]core.RatingStore{
		"memory": NewMemoryStore(1000),
		"redis":  redisStore,
		"sqlite": sqliteStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestRatingStores_Apply(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tracker := NewTracker(store, 32, 1000, []string{"A", "B", "C"}, &core.NopLogger{})

			applied, err := tracker.UpdateRatings(ctx, "battle-1", 0, "A", "B")
			if err != nil || !applied {
				t.Fatalf("First update: applied=%v err=%v", applied, err)
			}

			applied, err = tracker.UpdateRatings(ctx, "battle-1", 0, "A", "B")
			if err != nil || applied {
				t.Fatalf("Repeated update must be ignored: applied=%v err=%v", applied, err)
			}

			a, err := tracker.Rating(ctx, "A")
			if err != nil {
				t.Fatalf("Rating failed: %v", err)
			}
			if !almostEqual(a.Rating, 1016) || a.Wins != 1 || a.Games != 1 {
				t.Errorf("Unexpected winner entry: %+v", a)
			}
			b, _ := tracker.Rating(ctx, "B")
			if !almostEqual(b.Rating, 984) || b.Losses != 1 || b.Games != 1 {
				t.Errorf("Unexpected loser entry: %+v", b)
			}

			if _, err := tracker.UpdateRatings(ctx, "battle-1", 1, "C", "A"); err != nil {
				t.Fatalf("Second round update failed: %v", err)
			}

			board, err := tracker.Leaderboard(ctx)
			if err != nil {
				t.Fatalf("Leaderboard failed: %v", err)
			}
			if len(board) != 3 {
				t.Fatalf("Expected 3 entries, got %+v", board)
			}
			for i := 1; i < len(board); i++ {
				if board[i-1].Rating < board[i].Rating {
					t.Errorf("Leaderboard not sorted: %+v", board)
				}
			}
			total := 0.0
			for _, e := range board {
				total += e.Rating
			}
			if !almostEqual(total, 3000) {
				t.Errorf("Elo must be zero-sum, total %v", total)
			}
		})
	}
}

func TestRatingStores_ConcurrentRetries(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tracker := NewTracker(store, 32, 1000, nil, &core.NopLogger{})

			var wg sync.WaitGroup
			var mu sync.Mutex
			appliedCount := 0
			for range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					applied, err := tracker.UpdateRatings(ctx, "battle-x", 0, "A", "B")
					if err != nil {
						t.Errorf("UpdateRatings failed: %v", err)
						return
					}
					if applied {
						mu.Lock()
						appliedCount++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			if appliedCount != 1 {
				t.Errorf("Expected exactly one applied update, got %d", appliedCount)
			}
			a, _ := tracker.Rating(ctx, "A")
			if a.Games != 1 {
				t.Errorf("Expected one game for A, got %+v", a)
			}
		})
	}
}

func TestLeaderboard_IncludesUnplayedModels(t *testing.T) {
	tracker := NewTracker(NewMemoryStore(1200), 32, 1200, []string{"x", "y"}, &core.NopLogger{})
	board, err := tracker.Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(board) != 2 || board[0].ModelID != "x" || board[0].Rating != 1200 {
		t.Errorf("Unexpected leaderboard: %+v", board)
	}
}

func TestOpenStore_Selection(t *testing.T) {
	ctx := context.Background()

	store, err := OpenStore(ctx, StoreOptions{RedisURL: "redis://127.0.0.1:1", Initial: 1000}, &core.NopLogger{})
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("Expected memory fallback, got %T", store)
	}

	mr := miniredis.RunT(t)
	store, err = OpenStore(ctx, StoreOptions{RedisURL: "redis://" + mr.Addr(), Initial: 1000}, &core.NopLogger{})
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()
	if _, ok := store.(*RedisStore); !ok {
		t.Errorf("Expected Redis store, got %T", store)
	}

	if _, err := OpenStore(ctx, StoreOptions{Backend: "etcd"}, &core.NopLogger{}); err == nil {
		t.Error("Expected unknown backend to fail")
	}
	if _, err := OpenStore(ctx, StoreOptions{Backend: core.RatingsBackendRedis, RedisURL: "redis://127.0.0.1:1"}, &core.NopLogger{}); err == nil {
		t.Error("Expected explicit redis backend to fail when unreachable")
	}
}
