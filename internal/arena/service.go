// Package arena is the battle service behind the HTTP API. It loads a
// session, runs the tournament engine and response generator against it, and
// persists the result. Sessions are never held in memory between requests, so
// any worker sharing the battle store can serve any call.
package arena

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"modelarena/internal/config"
	"modelarena/internal/core"
	"modelarena/internal/generator"
	"modelarena/internal/rating"
	"modelarena/internal/tournament"
	"modelarena/internal/util"
)

// Options wires a Service.
type Options struct {
	Store     core.BattleStore
	Generator *generator.Generator
	Ratings   *rating.Tracker
	Metrics   core.MetricsCollector
	Logger    core.Logger
	Models    []core.ModelDescriptor
	Settings  config.ArenaSettings
}

// Service runs battles.
type Service struct {
	store    core.BattleStore
	gen      *generator.Generator
	ratings  *rating.Tracker
	metrics  core.MetricsCollector
	logger   core.Logger
	models   []core.ModelDescriptor
	byID     map[string]core.ModelDescriptor
	settings config.ArenaSettings
	locks    *battleLocks
	now      func() time.Time
}

// NewService creates a battle service.
func NewService(opts Options) *Service {
	byID := make(map[string]core.ModelDescriptor, len(opts.Models))
	for _, m := range opts.Models {
		byID[m.ID] = m
	}
	if opts.Metrics == nil {
		opts.Metrics = &core.NopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = &core.NopLogger{}
	}
	return &Service{
		store:    opts.Store,
		gen:      opts.Generator,
		ratings:  opts.Ratings,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		models:   opts.Models,
		byID:     byID,
		settings: opts.Settings,
		locks:    newBattleLocks(),
		now:      time.Now,
	}
}

// StartBattle creates a battle over models (all configured models when empty)
// and generates the first matchup. When neither side of the first pair
// answers under the retry policy nothing is stored and the caller should start
// again later.
func (s *Service) StartBattle(ctx context.Context, prompt string, models []string) (*core.StartBattleResponse, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, core.ErrEmptyPrompt
	}
	if len(prompt) > core.MaxPromptLength {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", core.ErrPromptTooLong, len(prompt), core.MaxPromptLength)
	}

	ids, err := s.resolveModels(models)
	if err != nil {
		return nil, err
	}

	seed := s.settings.Seed
	if !s.settings.SeedSet {
		seed = util.NewSeed()
	}

	session, err := tournament.NewSession(util.NewBattleID(), prompt, ids, seed, s.settings.Shuffle, s.now())
	if err != nil {
		return nil, err
	}

	if _, err := s.gen.FillResponses(ctx, session, session.CurrentPair); err != nil {
		return nil, err
	}
	if err := tournament.CheckInvariants(session); err != nil {
		s.logger.Error("New battle %s is inconsistent: %v", session.BattleID, err)
		return nil, err
	}
	if err := s.store.Save(ctx, session, s.settings.BattleTTL); err != nil {
		return nil, fmt.Errorf("failed to save battle: %w", err)
	}

	s.metrics.RecordBattleStarted()
	s.logger.Info("Battle %s started: %d models, first pair %v", session.BattleID, len(ids), session.CurrentPair)

	return &core.StartBattleResponse{
		BattleID:      session.BattleID,
		MatchupView:   s.view(session),
		Round:         session.Round,
		TotalRounds:   tournament.TotalRounds(session),
		StorageStatus: s.store.Status(),
	}, nil
}

func (s *Service) resolveModels(models []string) ([]string, error) {
	if len(models) == 0 {
		ids := make([]string, 0, len(s.models))
		for _, m := range s.models {
			ids = append(ids, m.ID)
		}
		if len(ids) < core.MinModelsPerBattle {
			return nil, fmt.Errorf("%w: %d configured", core.ErrNotEnoughModels, len(ids))
		}
		return ids, nil
	}

	var errs error
	for _, id := range models {
		if _, ok := s.byID[id]; !ok {
			errs = errors.Join(errs, fmt.Errorf("%w: %s", core.ErrUnknownModel, id))
		}
	}
	if errs != nil {
		return nil, errs
	}
	return models, nil
}

// GetResponses returns the current matchup, generating any response that is
// still missing.
func (s *Service) GetResponses(ctx context.Context, battleID string) (*core.ResponsesResult, error) {
	unlock := s.locks.lock(battleID)
	defer unlock()

	session, err := s.load(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if session.Completed {
		return nil, core.ErrBattleCompleted
	}

	if session.State() == core.StateRoundPending {
		if err := s.fill(ctx, session); err != nil {
			return nil, err
		}
	}

	return &core.ResponsesResult{
		BattleID:      session.BattleID,
		MatchupView:   s.view(session),
		Round:         session.Round,
		StorageStatus: s.store.Status(),
	}, nil
}

// Vote records a choice for the current matchup.
//
// round is the round the voter saw. A retried vote for an earlier round is
// answered from the log without changing anything, which also returns the
// final result of a completed battle. When the current pair still lacks
// responses they are generated and ErrResponsesPending is returned so the
// choice is never applied to responses the voter has not seen.
func (s *Service) Vote(ctx context.Context, battleID string, choice core.Choice, round int) (*core.VoteResult, error) {
	if !choice.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidChoice, choice)
	}

	unlock := s.locks.lock(battleID)
	defer unlock()

	session, err := s.load(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if round == session.Round && session.State() == core.StateRoundPending {
		if err := s.fill(ctx, session); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: round %d of battle %s", core.ErrResponsesPending, round, battleID)
	}

	out, err := tournament.RecordChoice(session, choice, &round, s.now())
	if err != nil {
		if errors.Is(err, core.ErrInvariantViolation) {
			return nil, s.fail(ctx, session, err)
		}
		return nil, err
	}
	if out.Replayed {
		return s.result(session, out), nil
	}
	if err := tournament.CheckInvariants(session); err != nil {
		return nil, s.fail(ctx, session, err)
	}

	s.metrics.RecordVote(out.Tie)
	res := s.result(session, out)

	ttl := s.settings.BattleTTL
	switch {
	case out.Completed:
		ttl = s.settings.CompletedTTL
		s.logger.Info("Battle %s completed: %v", battleID, session.FinalRanking)
	case !out.Tie:
		if err := s.fill(ctx, session); err != nil {
			if !errors.Is(err, core.ErrBackendsUnavailable) {
				return nil, err
			}
			res.MatchupView = nil
			res.ResponsesPending = true
		} else {
			res.MatchupView = ptr(s.view(session))
		}
	}

	if err := s.store.Save(ctx, session, ttl); err != nil {
		return nil, fmt.Errorf("failed to save battle %s: %w", battleID, err)
	}
	res.StorageStatus = s.store.Status()

	if !out.Tie && !out.Forced && s.ratings != nil {
		if _, err := s.ratings.UpdateRatings(ctx, battleID, session.Round-1, out.Winner, out.Loser); err != nil {
			s.logger.Warn("Battle %s: %v", battleID, err)
		}
	}
	return res, nil
}

// Status summarizes a battle without revealing responses.
func (s *Service) Status(ctx context.Context, battleID string) (*core.StatusResult, error) {
	session, err := s.store.Load(ctx, battleID)
	if err != nil {
		return nil, err
	}
	return &core.StatusResult{
		BattleID:      session.BattleID,
		State:         session.State(),
		Round:         session.Round,
		TotalRounds:   tournament.TotalRounds(session),
		Completed:     session.Completed,
		Failed:        session.Failed,
		FailureReason: session.FailureReason,
		TiePolicy:     core.TiePolicy,
		StorageStatus: s.store.Status(),
	}, nil
}

// DeleteBattle removes a battle. Deleting an unknown battle succeeds.
func (s *Service) DeleteBattle(ctx context.Context, battleID string) error {
	unlock := s.locks.lock(battleID)
	defer unlock()
	return s.store.Delete(ctx, battleID)
}

// Leaderboard returns long-lived model ratings, highest first.
func (s *Service) Leaderboard(ctx context.Context) ([]core.RatingEntry, error) {
	if s.ratings == nil {
		return []core.RatingEntry{}, nil
	}
	return s.ratings.Leaderboard(ctx)
}

// Models lists the configured models without endpoints or credentials.
func (s *Service) Models() []core.PublicModel {
	out := make([]core.PublicModel, 0, len(s.models))
	for _, m := range s.models {
		out = append(out, core.PublicModel{ID: m.ID, DisplayName: m.DisplayName, Backend: m.Backend, Label: m.Label})
	}
	return out
}

// StorageStatus reports where battles are currently stored.
func (s *Service) StorageStatus() string {
	return s.store.Status()
}

func (s *Service) load(ctx context.Context, battleID string) (*core.BattleSession, error) {
	session, err := s.store.Load(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if session.Failed {
		return nil, fmt.Errorf("%w: %s", core.ErrBattleFailed, session.FailureReason)
	}
	return session, nil
}

// fill generates missing responses for the current pair and saves them so
// they are never regenerated.
func (s *Service) fill(ctx context.Context, session *core.BattleSession) error {
	res, err := s.gen.FillResponses(ctx, session, session.CurrentPair)
	if err != nil {
		return err
	}
	if len(res.Called) == 0 {
		return nil
	}
	if err := tournament.CheckInvariants(session); err != nil {
		return s.fail(ctx, session, err)
	}
	if err := s.store.Save(ctx, session, s.settings.BattleTTL); err != nil {
		return fmt.Errorf("failed to save responses for battle %s: %w", session.BattleID, err)
	}
	return nil
}

// fail marks the battle failed, persists it and returns cause.
func (s *Service) fail(ctx context.Context, session *core.BattleSession, cause error) error {
	s.logger.Error("Battle %s failed: %v", session.BattleID, cause)
	tournament.MarkFailed(session, cause.Error())
	if err := s.store.Save(ctx, session, s.settings.CompletedTTL); err != nil {
		s.logger.Error("Failed to persist failed battle %s: %v", session.BattleID, err)
	}
	return cause
}
