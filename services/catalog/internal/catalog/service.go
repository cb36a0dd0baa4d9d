// Package catalog implements the read paths served to the HTTP layer.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/openvalve/services/catalog/internal/enrich"
	"github.com/example/openvalve/services/catalog/internal/metrics"
	"github.com/example/openvalve/services/catalog/internal/store"
)

const (
	DefaultSampleLimit = 10
	MaxSampleLimit     = 100
)

// ErrNotFound is returned by Lookup when the app id has no row.
var ErrNotFound = errors.New("catalog: game not found")

type Service struct {
	Store   store.CatalogStore
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

func New(s store.CatalogStore, log *zap.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Store: s, Log: log, Metrics: m}
}

// Lookup returns the matching game as a one-element slice.
func (s *Service) Lookup(ctx context.Context, appID int64) ([]store.Game, error) {
	g, err := s.Store.GetByID(ctx, appID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Metrics.Lookup("miss")
			return nil, ErrNotFound
		}
		s.Metrics.Lookup("error")
		return nil, fmt.Errorf("lookup %d: %w", appID, err)
	}
	s.Metrics.Lookup("hit")
	return []store.Game{g}, nil
}

// Sample returns up to limit games in no particular order. Non-positive
// limits use DefaultSampleLimit; larger ones are capped at MaxSampleLimit.
func (s *Service) Sample(ctx context.Context, limit int) ([]store.Game, error) {
	switch {
	case limit <= 0:
		limit = DefaultSampleLimit
	case limit > MaxSampleLimit:
		limit = MaxSampleLimit
	}
	games, err := s.Store.SampleRandom(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("sample: %w", err)
	}
	return games, nil
}

// Enrich joins remote descriptors with local attributes. An empty input
// returns an empty result without touching the store.
func (s *Service) Enrich(ctx context.Context, descs []enrich.Descriptor) enrich.Result {
	if len(descs) == 0 {
		return enrich.Result{Games: []enrich.Game{}}
	}
	j := enrich.Joiner{Store: s.Store, Log: s.Log}
	res := j.Join(ctx, descs)
	s.Metrics.Enriched(len(res.Games), res.Degraded != nil)
	return res
}
