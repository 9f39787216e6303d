package rating

import (
	"context"
	"sync"

	"modelarena/internal/core"
)

// MemoryStore keeps ratings in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	initial float64
	entries map[string]*core.RatingEntry
	applied map[string]bool
}

func NewMemoryStore(initial float64) *MemoryStore {
	return &MemoryStore{
		initial: initial,
		entries: make(map[string]*core.RatingEntry),
		applied: make(map[string]bool),
	}
}

func (m *MemoryStore) Apply(_ context.Context, matchKey, winnerID, loserID string, update core.RatingUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.applied[matchKey] {
		return false, nil
	}
	m.applied[matchKey] = true

	w, l := m.entry(winnerID), m.entry(loserID)
	w.Rating, l.Rating = update(w.Rating, l.Rating)
	w.Wins++
	w.Games++
	l.Losses++
	l.Games++
	return true, nil
}

func (m *MemoryStore) entry(id string) *core.RatingEntry {
	e, ok := m.entries[id]
	if !ok {
		e = &core.RatingEntry{ModelID: id, Rating: m.initial}
		m.entries[id] = e
	}
	return e
}

func (m *MemoryStore) Get(_ context.Context, modelID string) (core.RatingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[modelID]; ok {
		return *e, nil
	}
	return core.RatingEntry{ModelID: modelID, Rating: m.initial}, nil
}

func (m *MemoryStore) List(_ context.Context) ([]core.RatingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.RatingEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e)
	}
	sortEntries(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

var _ core.RatingStore = (*MemoryStore)(nil)
