// Package generator fills in backend responses for a battle's current matchup.
package generator

import (
	"context"
	"fmt"
	"time"

	"modelarena/internal/backend"
	"modelarena/internal/core"

	"golang.org/x/sync/errgroup"
)

// Backend is the subset of backend.Client the generator needs.
type Backend interface {
	Generate(ctx context.Context, desc core.ModelDescriptor, prompt string, timeout time.Duration) backend.Result
}

// FillResult reports what a fill call did.
type FillResult struct {
	Called      []string
	Answered    []string
	Unavailable []string
	BothFailed  bool
}

// Generator calls backends for the models of a pair that have no cached
// response yet.
type Generator struct {
	backend  Backend
	models   map[string]core.ModelDescriptor
	bothFail core.BothFailPolicy
	logger   core.Logger
}

// New creates a generator over the configured model descriptors.
func New(b Backend, models []core.ModelDescriptor, bothFail core.BothFailPolicy, logger core.Logger) *Generator {
	byID := make(map[string]core.ModelDescriptor, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}
	if bothFail == "" {
		bothFail = core.BothFailRetry
	}
	return &Generator{backend: b, models: byID, bothFail: bothFail, logger: logger}
}

// Descriptor looks up a model by id.
func (g *Generator) Descriptor(id string) (core.ModelDescriptor, bool) {
	d, ok := g.models[id]
	return d, ok
}

// FillResponses calls, in parallel, every model of pair that is neither
// cached nor already unavailable, and records the outcome on the session.
// Each call is bounded by its own descriptor timeout, so the whole fill takes
// at most the slower of the two.
//
// When every called side of a two-sided fill fails, the both-fail policy
// applies: with retry nothing is recorded and ErrBackendsUnavailable is
// returned; with forfeit both sides are marked unavailable.
func (g *Generator) FillResponses(ctx context.Context, session *core.BattleSession, pair []string) (FillResult, error) {
	var pending []core.ModelDescriptor
	for _, id := range pair {
		if session.HasResponse(id) {
			continue
		}
		desc, ok := g.models[id]
		if !ok {
			return FillResult{}, fmt.Errorf("%w: %s", core.ErrUnknownModel, id)
		}
		pending = append(pending, desc)
	}
	if len(pending) == 0 {
		return FillResult{}, nil
	}

	ctx = backend.WithBattleID(ctx, session.BattleID)
	results := make([]backend.Result, len(pending))

	var eg errgroup.Group
	for i, desc := range pending {
		eg.Go(func() error {
			results[i] = g.backend.Generate(ctx, desc, session.Prompt, desc.Timeout())
			return nil
		})
	}
	_ = eg.Wait()

	out := FillResult{}
	failed := 0
	for i, desc := range pending {
		out.Called = append(out.Called, desc.ID)
		if !results[i].OK {
			failed++
		}
	}

	if failed == len(pending) && len(pair) == 2 && noCachedText(session, pair) {
		out.BothFailed = true
		if g.bothFail == core.BothFailRetry {
			g.logger.Warn("Battle %s: no answer from %v, nothing recorded", session.BattleID, pair)
			return out, fmt.Errorf("%w: %v", core.ErrBackendsUnavailable, pair)
		}
		g.logger.Warn("Battle %s: no answer from %v, forfeiting to %s", session.BattleID, pair, pair[0])
	}

	for i, desc := range pending {
		if results[i].OK {
			session.CachedResponses[desc.ID] = results[i].Text
			out.Answered = append(out.Answered, desc.ID)
			continue
		}
		if !session.IsUnavailable(desc.ID) {
			session.UnavailableModels = append(session.UnavailableModels, desc.ID)
		}
		out.Unavailable = append(out.Unavailable, desc.ID)
	}
	return out, nil
}

func noCachedText(session *core.BattleSession, pair []string) bool {
	for _, id := range pair {
		if _, ok := session.CachedResponses[id]; ok {
			return false
		}
	}
	return true
}
