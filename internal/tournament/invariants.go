package tournament

import (
	"fmt"
	"slices"

	"modelarena/internal/core"
)

// CheckInvariants verifies the structural rules every persisted session must
// satisfy. A non-nil result wraps core.ErrInvariantViolation.
func CheckInvariants(s *core.BattleSession) error {
	violation := func(format string, args ...any) error {
		return fmt.Errorf("%w: battle %s: %s", core.ErrInvariantViolation, s.BattleID, fmt.Sprintf(format, args...))
	}

	owner := make(map[string]string, len(s.AllModels))
	for _, set := range []struct {
		name string
		ids  []string
	}{
		{"winner_chain", s.WinnerChain},
		{"eliminated_models", s.EliminatedModels},
		{"remaining_models", s.RemainingModels},
	} {
		for _, id := range set.ids {
			if prev, ok := owner[id]; ok {
				return violation("%s is in both %s and %s", id, prev, set.name)
			}
			if !slices.Contains(s.AllModels, id) {
				return violation("%s in %s is not a battle model", id, set.name)
			}
			owner[id] = set.name
		}
	}
	if len(owner) != len(s.AllModels) {
		return violation("%d of %d models are accounted for", len(owner), len(s.AllModels))
	}

	if s.Round != len(s.EliminatedModels) {
		return violation("round %d does not match %d eliminations", s.Round, len(s.EliminatedModels))
	}
	if s.Round > TotalRounds(s) {
		return violation("round %d exceeds %d total rounds", s.Round, TotalRounds(s))
	}

	if s.Completed {
		if len(s.CurrentPair) != 0 {
			return violation("completed battle still has a current pair")
		}
		if len(s.FinalRanking) != len(s.AllModels) {
			return violation("final ranking has %d of %d models", len(s.FinalRanking), len(s.AllModels))
		}
	} else {
		if len(s.CurrentPair) != 2 || s.CurrentPair[0] == s.CurrentPair[1] {
			return violation("current pair %v is not a matchup", s.CurrentPair)
		}
		for _, id := range s.CurrentPair {
			if slices.Contains(s.EliminatedModels, id) {
				return violation("eliminated model %s is in the current pair", id)
			}
		}
	}

	for id := range s.CachedResponses {
		if !participated(s, id) {
			return violation("%s has a response but never played", id)
		}
	}
	for _, id := range s.UnavailableModels {
		if !participated(s, id) {
			return violation("%s is unavailable but never played", id)
		}
	}
	return nil
}

func participated(s *core.BattleSession, id string) bool {
	return slices.Contains(s.CurrentPair, id) ||
		slices.Contains(s.WinnerChain, id) ||
		slices.Contains(s.EliminatedModels, id)
}
