// Package enrich merges locally stored catalog attributes into game records
// that come from a remote source.
package enrich

import (
	"context"
	"encoding/json"
	"maps"

	"go.uber.org/zap"

	"github.com/example/openvalve/services/catalog/internal/store"
)

// Descriptor is a remotely sourced game: its app id plus whatever fields the
// remote service returned. Fields is passed through untouched.
type Descriptor struct {
	AppID  int64
	Fields map[string]any
}

// Game is a Descriptor with the local tags, description and price merged in.
// When Enriched is false the local fields are left off the JSON form.
type Game struct {
	Descriptor
	Tags        []string
	Description string
	Price       string
	Enriched    bool
}

// MarshalJSON flattens the remote fields and local attributes into one
// object keyed by "appid".
func (g Game) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(g.Fields)+4)
	maps.Copy(out, g.Fields)
	out["appid"] = g.AppID
	if g.Enriched {
		tags := g.Tags
		if tags == nil {
			tags = []string{}
		}
		out["tags"] = tags
		out["description"] = g.Description
		out["price"] = g.Price
	}
	return json.Marshal(out)
}

// Lookup is the bulk read the join needs from the catalog store.
type Lookup interface {
	GetManyByIDs(ctx context.Context, appIDs []int64) (map[int64]store.LocalAttrs, error)
}

// Result is the join output. Degraded holds the lookup failure when local
// data could not be read; Games is still populated, just not enriched.
type Result struct {
	Games    []Game
	Degraded error
}

type Joiner struct {
	Store Lookup
	Log   *zap.Logger
}

// Join returns one Game per descriptor, in input order. Ids with no local
// row get empty tags, description and price. A lookup failure is not
// propagated: the descriptors come back unenriched and Result.Degraded is set.
func (j *Joiner) Join(ctx context.Context, descs []Descriptor) Result {
	games := make([]Game, len(descs))
	for i, d := range descs {
		games[i] = Game{Descriptor: d}
	}
	if len(descs) == 0 {
		return Result{Games: games}
	}

	ids := make([]int64, 0, len(descs))
	seen := make(map[int64]struct{}, len(descs))
	for _, d := range descs {
		if _, ok := seen[d.AppID]; ok {
			continue
		}
		seen[d.AppID] = struct{}{}
		ids = append(ids, d.AppID)
	}

	local, err := j.Store.GetManyByIDs(ctx, ids)
	if err != nil {
		if j.Log != nil {
			j.Log.Warn("enrichment degraded", zap.Int("games", len(descs)), zap.Error(err))
		}
		return Result{Games: games, Degraded: err}
	}

	for i := range games {
		games[i].Enriched = true
		games[i].Tags = []string{}
		if attrs, ok := local[games[i].AppID]; ok {
			if attrs.Tags != nil {
				games[i].Tags = attrs.Tags
			}
			games[i].Description = attrs.Description
			games[i].Price = attrs.Price.String()
		}
	}
	return Result{Games: games}
}
