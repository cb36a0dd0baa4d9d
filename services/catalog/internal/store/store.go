package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by point lookups that match no row.
var ErrNotFound = errors.New("store: game not found")

// Game is one catalog row, keyed by its Steam app id. Every field is always
// populated; absent source values are stored as their zero value and list
// fields as empty, never nil.
type Game struct {
	AppID            int64
	Name             string
	ReleaseDate      string
	EstimatedOwners  string
	PeakCCU          int32
	RequiredAge      int32
	Price            Price
	DLCCount         int32
	Description      string
	ShortDescription string
	Languages        string
	HeaderImage      string
	Website          string
	Windows          bool
	Mac              bool
	Linux            bool
	UserScore        int32
	Positive         int32
	Negative         int32
	ScoreRank        string
	Achievements     int32
	Recommendations  int32
	Notes            string

	AveragePlaytimeForever int32
	AveragePlaytime2Weeks  int32
	MedianPlaytimeForever  int32
	MedianPlaytime2Weeks   int32

	Developers []string
	Publishers []string
	Categories []string
	Genres     []string
	Tags       []string
}

// LocalAttrs is the subset of a Game merged into remotely sourced records.
type LocalAttrs struct {
	Tags        []string
	Description string
	Price       Price
}

// CatalogStore is the read side used at request time.
type CatalogStore interface {
	GetByID(ctx context.Context, appID int64) (Game, error)
	// GetManyByIDs returns an entry for every id that has a row; ids without
	// one are absent from the map.
	GetManyByIDs(ctx context.Context, appIDs []int64) (map[int64]LocalAttrs, error)
	SampleRandom(ctx context.Context, limit int) ([]Game, error)
}

// BatchInserter persists one batch atomically, skipping rows whose app id
// already exists. It reports how many rows were actually inserted.
type BatchInserter interface {
	InsertBatch(ctx context.Context, games []Game) (int64, error)
}

// SchemaResetter drops and recreates the catalog table.
type SchemaResetter interface {
	ResetSchema(ctx context.Context) error
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Normalize replaces nil list fields with empty slices.
func (g Game) Normalize() Game {
	g.Developers = emptyIfNil(g.Developers)
	g.Publishers = emptyIfNil(g.Publishers)
	g.Categories = emptyIfNil(g.Categories)
	g.Genres = emptyIfNil(g.Genres)
	g.Tags = emptyIfNil(g.Tags)
	return g
}
