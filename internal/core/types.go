package core

import (
	"slices"
	"time"
)

// Choice is a user's preference for one side of the current matchup.
type Choice string

// Vote choices.
const (
	ChoiceA   Choice = "a"
	ChoiceB   Choice = "b"
	ChoiceTie Choice = "tie"
)

// Valid reports whether c is one of the accepted choices.
func (c Choice) Valid() bool {
	return c == ChoiceA || c == ChoiceB || c == ChoiceTie
}

// BattleState is the observable phase of a battle.
type BattleState string

// Battle states.
const (
	StateNotStarted   BattleState = "not_started"
	StateRoundPending BattleState = "round_pending"
	StateAwaitingVote BattleState = "awaiting_vote"
	StateCompleted    BattleState = "completed"
	StateFailed       BattleState = "failed"
)

// VoteRecord is one entry of a battle's vote log.
type VoteRecord struct {
	Round  int    `json:"round"`
	Choice Choice `json:"choice"`
	Winner string `json:"winner,omitempty"`
	Loser  string `json:"loser,omitempty"`
	Forced bool   `json:"forced,omitempty"`
	At     int64  `json:"at"`
}

// BattleSession is the persisted state of one tournament.
// The JSON layout is flat so any worker can decode it.
type BattleSession struct {
	BattleID          string            `json:"battle_id"`
	Prompt            string            `json:"prompt"`
	AllModels         []string          `json:"all_models"`
	CachedResponses   map[string]string `json:"cached_responses"`
	UnavailableModels []string          `json:"unavailable_models"`
	RemainingModels   []string          `json:"remaining_models"`
	WinnerChain       []string          `json:"winner_chain"`
	EliminatedModels  []string          `json:"eliminated_models"`
	CurrentPair       []string          `json:"current_pair"`
	Round             int               `json:"round"`
	Completed         bool              `json:"completed"`
	FinalRanking      []string          `json:"final_ranking"`
	Failed            bool              `json:"failed"`
	FailureReason     string            `json:"failure_reason,omitempty"`
	Seed              int64             `json:"seed"`
	Shuffled          bool              `json:"shuffled"`
	Votes             []VoteRecord      `json:"votes"`
	Version           int64             `json:"version"`
	CreatedAt         int64             `json:"created_at"`
	UpdatedAt         int64             `json:"updated_at"`
}

// StandingWinner returns winner_chain[-1], or "" before the first decision.
func (s *BattleSession) StandingWinner() string {
	if len(s.WinnerChain) == 0 {
		return ""
	}
	return s.WinnerChain[len(s.WinnerChain)-1]
}

// HasResponse reports whether the model has produced text or was marked unavailable.
func (s *BattleSession) HasResponse(modelID string) bool {
	if _, ok := s.CachedResponses[modelID]; ok {
		return true
	}
	return s.IsUnavailable(modelID)
}

// IsUnavailable reports whether the model failed to answer in this battle.
func (s *BattleSession) IsUnavailable(modelID string) bool {
	return slices.Contains(s.UnavailableModels, modelID)
}

// State derives the battle phase from the session fields.
func (s *BattleSession) State() BattleState {
	switch {
	case s.Failed:
		return StateFailed
	case s.Completed:
		return StateCompleted
	case len(s.CurrentPair) != 2:
		return StateNotStarted
	case s.HasResponse(s.CurrentPair[0]) && s.HasResponse(s.CurrentPair[1]):
		return StateAwaitingVote
	default:
		return StateRoundPending
	}
}

// Clone returns a deep copy of the session.
func (s *BattleSession) Clone() *BattleSession {
	if s == nil {
		return nil
	}
	c := *s
	c.AllModels = slices.Clone(s.AllModels)
	c.UnavailableModels = slices.Clone(s.UnavailableModels)
	c.RemainingModels = slices.Clone(s.RemainingModels)
	c.WinnerChain = slices.Clone(s.WinnerChain)
	c.EliminatedModels = slices.Clone(s.EliminatedModels)
	c.CurrentPair = slices.Clone(s.CurrentPair)
	c.FinalRanking = slices.Clone(s.FinalRanking)
	c.Votes = slices.Clone(s.Votes)
	if s.CachedResponses != nil {
		c.CachedResponses = make(map[string]string, len(s.CachedResponses))
		for k, v := range s.CachedResponses {
			c.CachedResponses[k] = v
		}
	}
	return &c
}

// Touch bumps the version and update timestamp before a save.
func (s *BattleSession) Touch(now time.Time) {
	s.Version++
	s.UpdatedAt = now.Unix()
}

// StartBattleRequest is the body of a battle creation call.
type StartBattleRequest struct {
	Prompt string   `json:"prompt" binding:"required"`
	Models []string `json:"models,omitempty"`
}

// VoteRequest is the body of a vote call. Round is the round the client saw;
// it makes retried votes idempotent, so it is required.
type VoteRequest struct {
	Choice Choice `json:"choice" binding:"required"`
	Round  *int   `json:"round" binding:"required"`
}

// MatchupView is the anonymous view of the current matchup.
type MatchupView struct {
	ModelALabel string `json:"model_a_label"`
	ModelBLabel string `json:"model_b_label"`
	ResponseA   string `json:"response_a"`
	ResponseB   string `json:"response_b"`
	AAvailable  bool   `json:"response_a_available"`
	BAvailable  bool   `json:"response_b_available"`
}

// StartBattleResponse is returned when a battle is created.
type StartBattleResponse struct {
	BattleID string `json:"battle_id"`
	MatchupView
	Round         int    `json:"round"`
	TotalRounds   int    `json:"total_rounds"`
	StorageStatus string `json:"storage_status"`
}

// ResponsesResult is the re-fetch of the current matchup.
type ResponsesResult struct {
	BattleID string `json:"battle_id"`
	MatchupView
	Round         int    `json:"round"`
	StorageStatus string `json:"storage_status"`
}

// RankedModel reveals a model's identity in the final ranking.
type RankedModel struct {
	Rank        int    `json:"rank"`
	ModelID     string `json:"model_id"`
	DisplayName string `json:"display_name"`
	Label       string `json:"label"`
}

// VoteResult is returned after a vote is recorded.
type VoteResult struct {
	BattleID string `json:"battle_id"`
	Continue bool   `json:"continue"`
	*MatchupView
	EliminatedModel  string        `json:"eliminated_model,omitempty"`
	Tie              bool          `json:"tie,omitempty"`
	Forced           bool          `json:"forced,omitempty"`
	ResponsesPending bool          `json:"responses_pending,omitempty"`
	Round            int           `json:"round"`
	FinalRanking     []string      `json:"final_ranking,omitempty"`
	Ranking          []RankedModel `json:"ranking,omitempty"`
	StorageStatus    string        `json:"storage_status"`
}

// StatusResult summarizes a battle without exposing responses.
type StatusResult struct {
	BattleID      string      `json:"battle_id"`
	State         BattleState `json:"state"`
	Round         int         `json:"round"`
	TotalRounds   int         `json:"total_rounds"`
	Completed     bool        `json:"completed"`
	Failed        bool        `json:"failed,omitempty"`
	FailureReason string      `json:"failure_reason,omitempty"`
	TiePolicy     string      `json:"tie_policy"`
	StorageStatus string      `json:"storage_status"`
}
