package store

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"
)

// MemoryCatalogStore keeps games in process memory with the same first-write
// wins semantics as the Postgres store. Intended for tests and local runs.
type MemoryCatalogStore struct {
	mu    sync.RWMutex
	games map[int64]Game
	order []int64
}

func NewMemoryCatalogStore() *MemoryCatalogStore {
	return &MemoryCatalogStore{games: make(map[int64]Game)}
}

func (s *MemoryCatalogStore) ResetSchema(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games = make(map[int64]Game)
	s.order = nil
	return nil
}

func (s *MemoryCatalogStore) InsertBatch(ctx context.Context, games []Game) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var inserted int64
	for _, g := range games {
		if _, ok := s.games[g.AppID]; ok {
			continue
		}
		s.games[g.AppID] = cloneGame(g.Normalize())
		s.order = append(s.order, g.AppID)
		inserted++
	}
	return inserted, nil
}

func (s *MemoryCatalogStore) GetByID(_ context.Context, appID int64) (Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[appID]
	if !ok {
		return Game{}, ErrNotFound
	}
	return cloneGame(g), nil
}

func (s *MemoryCatalogStore) GetManyByIDs(_ context.Context, appIDs []int64) (map[int64]LocalAttrs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]LocalAttrs, len(appIDs))
	for _, id := range appIDs {
		if g, ok := s.games[id]; ok {
			out[id] = LocalAttrs{Tags: slices.Clone(g.Tags), Description: g.Description, Price: g.Price}
		}
	}
	return out, nil
}

func (s *MemoryCatalogStore) SampleRandom(_ context.Context, limit int) ([]Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		return []Game{}, nil
	}
	ids := slices.Clone(s.order)
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]Game, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneGame(s.games[id]))
	}
	return out, nil
}

// Len reports the number of stored games.
func (s *MemoryCatalogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}

func cloneGame(g Game) Game {
	g.Developers = slices.Clone(g.Developers)
	g.Publishers = slices.Clone(g.Publishers)
	g.Categories = slices.Clone(g.Categories)
	g.Genres = slices.Clone(g.Genres)
	g.Tags = slices.Clone(g.Tags)
	return g
}
