// Package tournament implements the single-elimination ladder that drives a
// battle. Everything here is pure: functions take a *core.BattleSession,
// mutate it in place and never perform I/O.
//
// The ladder works like king-of-the-hill. Round 0 pits the first two models
// against each other; every later round pits the standing winner against the
// next model that has not played yet. N models need exactly N-1 decisive votes.
package tournament

import (
	"fmt"
	"slices"
	"time"

	"modelarena/internal/core"
	"modelarena/internal/util"
)

// Outcome describes what a recorded choice did to the session.
type Outcome struct {
	Winner    string
	Loser     string
	Tie       bool
	Forced    bool
	Replayed  bool
	Completed bool
}

// NewSession creates a battle over models. With shuffle set the entry order
// is a deterministic permutation derived from seed; the seed is stored so the
// order can be reproduced.
func NewSession(battleID, prompt string, models []string, seed int64, shuffle bool, now time.Time) (*core.BattleSession, error) {
	if len(models) < core.MinModelsPerBattle {
		return nil, fmt.Errorf("%w: got %d", core.ErrNotEnoughModels, len(models))
	}
	seen := make(map[string]bool, len(models))
	for _, id := range models {
		if id == "" || seen[id] {
			return nil, fmt.Errorf("%w: duplicate or empty model id %q", core.ErrUnknownModel, id)
		}
		seen[id] = true
	}

	order := slices.Clone(models)
	if shuffle {
		order = util.ShuffleSeeded(models, seed)
	}

	s := &core.BattleSession{
		BattleID:          battleID,
		Prompt:            prompt,
		AllModels:         order,
		CachedResponses:   map[string]string{},
		UnavailableModels: []string{},
		RemainingModels:   slices.Clone(order),
		WinnerChain:       []string{},
		EliminatedModels:  []string{},
		FinalRanking:      []string{},
		Seed:              seed,
		Shuffled:          shuffle,
		Votes:             []core.VoteRecord{},
		CreatedAt:         now.Unix(),
		UpdatedAt:         now.Unix(),
	}

	pair, err := GetNextMatchup(s)
	if err != nil {
		return nil, err
	}
	s.CurrentPair = pair
	return s, nil
}

// TotalRounds is the number of decisive votes needed to finish the battle.
func TotalRounds(s *core.BattleSession) int {
	return len(s.AllModels) - 1
}

// GetNextMatchup returns the pair for the next round: the first two models
// before any decision, then (standing winner, next unused model). It returns
// nil for a completed battle and ErrInvariantViolation when no opponent is
// left for an unfinished one.
func GetNextMatchup(s *core.BattleSession) ([]string, error) {
	if s.Completed {
		return nil, nil
	}

	unused := unusedModels(s)
	champion := s.StandingWinner()
	if champion == "" {
		if len(unused) < 2 {
			return nil, fmt.Errorf("%w: battle %s has %d unused models and no standing winner",
				core.ErrInvariantViolation, s.BattleID, len(unused))
		}
		return []string{unused[0], unused[1]}, nil
	}

	if len(unused) == 0 {
		return nil, fmt.Errorf("%w: battle %s round %d has no opponent for %s",
			core.ErrInvariantViolation, s.BattleID, s.Round, champion)
	}
	return []string{champion, unused[0]}, nil
}

// unusedModels lists models, in entry order, that have not won or lost yet.
func unusedModels(s *core.BattleSession) []string {
	var out []string
	for _, id := range s.AllModels {
		if !slices.Contains(s.WinnerChain, id) && !slices.Contains(s.EliminatedModels, id) {
			out = append(out, id)
		}
	}
	return out
}

// Resolve maps a choice onto the current pair. A side that failed to answer
// always loses; when both failed side A (the defender) advances. A tie with
// both sides available resolves to no winner.
func Resolve(s *core.BattleSession, choice core.Choice) (winner, loser string, forced, tie bool) {
	a, b := s.CurrentPair[0], s.CurrentPair[1]
	aDown, bDown := s.IsUnavailable(a), s.IsUnavailable(b)

	switch {
	case aDown && bDown:
		return a, b, true, false
	case aDown:
		return b, a, true, false
	case bDown:
		return a, b, true, false
	}

	switch choice {
	case core.ChoiceA:
		return a, b, false, false
	case core.ChoiceB:
		return b, a, false, false
	default:
		return "", "", false, true
	}
}

// RecordChoice applies a vote to the current matchup.
//
// round is the round the voter saw. When it is behind the session and the
// log shows the same choice for that round, the call is a replay and changes
// nothing. Any other mismatch is ErrStaleVote. A nil round skips the check.
func RecordChoice(s *core.BattleSession, choice core.Choice, round *int, now time.Time) (Outcome, error) {
	if s.Failed {
		return Outcome{}, core.ErrBattleFailed
	}
	if !choice.Valid() {
		return Outcome{}, fmt.Errorf("%w: %q", core.ErrInvalidChoice, choice)
	}

	if round != nil {
		if *round < s.Round {
			return replay(s, choice, *round)
		}
		if *round > s.Round {
			return Outcome{}, fmt.Errorf("%w: voted for round %d, battle is at round %d", core.ErrStaleVote, *round, s.Round)
		}
	}

	if s.Completed {
		return Outcome{}, core.ErrBattleCompleted
	}
	if len(s.CurrentPair) != 2 {
		return Outcome{}, fmt.Errorf("%w: battle %s has no current pair", core.ErrInvariantViolation, s.BattleID)
	}
	if !s.HasResponse(s.CurrentPair[0]) || !s.HasResponse(s.CurrentPair[1]) {
		return Outcome{}, core.ErrResponsesPending
	}

	winner, loser, forced, tie := Resolve(s, choice)
	if tie {
		s.Votes = append(s.Votes, core.VoteRecord{Round: s.Round, Choice: core.ChoiceTie, At: now.Unix()})
		return Outcome{Tie: true}, nil
	}

	s.RemainingModels = remove(s.RemainingModels, loser)
	s.WinnerChain = remove(s.WinnerChain, loser)
	s.EliminatedModels = append(s.EliminatedModels, loser)
	if s.StandingWinner() != winner {
		s.WinnerChain = append(s.WinnerChain, winner)
		s.RemainingModels = remove(s.RemainingModels, winner)
	}

	s.Votes = append(s.Votes, core.VoteRecord{
		Round:  s.Round,
		Choice: choice,
		Winner: winner,
		Loser:  loser,
		Forced: forced,
		At:     now.Unix(),
	})
	s.Round++

	out := Outcome{Winner: winner, Loser: loser, Forced: forced}

	contestable := len(s.RemainingModels) + len(s.WinnerChain)
	if s.Round == TotalRounds(s) || contestable < 2 {
		s.Completed = true
		s.CurrentPair = []string{}
		s.FinalRanking = FinalRanking(s)
		out.Completed = true
		return out, nil
	}

	pair, err := GetNextMatchup(s)
	if err != nil {
		return out, err
	}
	s.CurrentPair = pair
	return out, nil
}

func replay(s *core.BattleSession, choice core.Choice, round int) (Outcome, error) {
	for i := len(s.Votes) - 1; i >= 0; i-- {
		v := s.Votes[i]
		if v.Round != round || v.Choice == core.ChoiceTie {
			continue
		}
		if v.Choice != choice {
			return Outcome{}, fmt.Errorf("%w: round %d was already decided with %q", core.ErrStaleVote, round, v.Choice)
		}
		return Outcome{
			Winner:    v.Winner,
			Loser:     v.Loser,
			Forced:    v.Forced,
			Replayed:  true,
			Completed: s.Completed,
		}, nil
	}
	return Outcome{}, fmt.Errorf("%w: no decision recorded for round %d", core.ErrStaleVote, round)
}

// FinalRanking orders models champion first, then by how late they lost.
func FinalRanking(s *core.BattleSession) []string {
	ranking := make([]string, 0, len(s.AllModels))
	if champion := s.StandingWinner(); champion != "" {
		ranking = append(ranking, champion)
	}
	for i := len(s.EliminatedModels) - 1; i >= 0; i-- {
		ranking = append(ranking, s.EliminatedModels[i])
	}
	return ranking
}

// MarkFailed puts the battle in the terminal failed state.
func MarkFailed(s *core.BattleSession, reason string) {
	s.Failed = true
	s.FailureReason = reason
}

func remove(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(x string) bool { return x == id })
}
