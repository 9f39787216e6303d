package arena

import (
	"modelarena/internal/core"
	"modelarena/internal/tournament"
)

// view is the anonymous presentation of the current pair.
func (s *Service) view(session *core.BattleSession) core.MatchupView {
	if len(session.CurrentPair) != 2 {
		return core.MatchupView{}
	}
	a, b := session.CurrentPair[0], session.CurrentPair[1]
	ra, okA := session.CachedResponses[a]
	rb, okB := session.CachedResponses[b]
	return core.MatchupView{
		ModelALabel: s.label(a),
		ModelBLabel: s.label(b),
		ResponseA:   ra,
		ResponseB:   rb,
		AAvailable:  okA,
		BAvailable:  okB,
	}
}

func (s *Service) label(modelID string) string {
	if d, ok := s.byID[modelID]; ok && d.Label != "" {
		return d.Label
	}
	return modelID
}

func (s *Service) result(session *core.BattleSession, out tournament.Outcome) *core.VoteResult {
	res := &core.VoteResult{
		BattleID:      session.BattleID,
		Continue:      !session.Completed,
		Tie:           out.Tie,
		Forced:        out.Forced,
		Round:         session.Round,
		StorageStatus: s.store.Status(),
	}
	if out.Loser != "" {
		res.EliminatedModel = s.label(out.Loser)
	}

	if session.Completed {
		res.FinalRanking = session.FinalRanking
		res.Ranking = s.ranking(session)
		return res
	}
	res.MatchupView = ptr(s.view(session))
	return res
}

// ranking reveals model identities once the battle is over.
func (s *Service) ranking(session *core.BattleSession) []core.RankedModel {
	out := make([]core.RankedModel, 0, len(session.FinalRanking))
	for i, id := range session.FinalRanking {
		d := s.byID[id]
		name := d.DisplayName
		if name == "" {
			name = id
		}
		out = append(out, core.RankedModel{Rank: i + 1, ModelID: id, DisplayName: name, Label: s.label(id)})
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
