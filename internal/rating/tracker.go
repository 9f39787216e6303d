package rating

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"

	"modelarena/internal/core"
)

// Tracker applies Elo updates to a RatingStore.
type Tracker struct {
	store   core.RatingStore
	k       float64
	initial float64
	models  []string
	logger  core.Logger
}

// NewTracker creates a tracker. models are listed on the leaderboard even
// before they have played.
func NewTracker(store core.RatingStore, k, initial float64, models []string, logger core.Logger) *Tracker {
	return &Tracker{store: store, k: k, initial: initial, models: models, logger: logger}
}

// MatchKey identifies one decided round of one battle.
func MatchKey(battleID string, round int) string {
	return battleID + ":" + strconv.Itoa(round)
}

// UpdateRatings records that winner beat loser in the given round. Repeated
// calls for the same battle and round are ignored and report false.
func (t *Tracker) UpdateRatings(ctx context.Context, battleID string, round int, winner, loser string) (bool, error) {
	key := MatchKey(battleID, round)
	applied, err := t.store.Apply(ctx, key, winner, loser, EloUpdate(t.k))
	if err != nil {
		return false, fmt.Errorf("failed to update ratings for %s: %w", key, err)
	}
	if applied {
		t.logger.Debug("Rating update %s: %s beat %s", key, winner, loser)
	} else {
		t.logger.Debug("Rating update %s already applied", key)
	}
	return applied, nil
}

// Leaderboard returns every known model sorted by rating, highest first.
func (t *Tracker) Leaderboard(ctx context.Context) ([]core.RatingEntry, error) {
	entries, err := t.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[e.ModelID] = true
	}
	for _, id := range t.models {
		if !seen[id] {
			entries = append(entries, core.RatingEntry{ModelID: id, Rating: t.initial})
		}
	}

	sortEntries(entries)
	return entries, nil
}

// Rating returns one model's entry.
func (t *Tracker) Rating(ctx context.Context, modelID string) (core.RatingEntry, error) {
	return t.store.Get(ctx, modelID)
}

func (t *Tracker) Close() error {
	return t.store.Close()
}

func sortEntries(entries []core.RatingEntry) {
	slices.SortFunc(entries, func(a, b core.RatingEntry) int {
		if c := cmp.Compare(b.Rating, a.Rating); c != 0 {
			return c
		}
		return cmp.Compare(a.ModelID, b.ModelID)
	})
}
