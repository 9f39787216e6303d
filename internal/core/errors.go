package core

import "errors"

// Errors that propagate to the API boundary.
var (
	ErrBattleNotFound      = errors.New("battle not found")
	ErrInvariantViolation  = errors.New("tournament invariant violation")
	ErrBattleFailed        = errors.New("battle failed")
	ErrBattleCompleted     = errors.New("battle already completed")
	ErrInvalidChoice       = errors.New("invalid choice")
	ErrStaleVote           = errors.New("vote does not match the current round")
	ErrStaleWrite          = errors.New("battle was modified by another request")
	ErrBackendsUnavailable = errors.New("no backend answered for the current matchup")
	ErrResponsesPending    = errors.New("responses for the current matchup are not ready")
	ErrNotEnoughModels     = errors.New("a battle needs at least two models")
	ErrUnknownModel        = errors.New("unknown model")
	ErrEmptyPrompt         = errors.New("prompt is required")
	ErrPromptTooLong       = errors.New("prompt is too long")
)
