package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/openvalve/internal/platform/api"
	"github.com/example/openvalve/internal/platform/httpserver"
	"github.com/example/openvalve/services/catalog/internal/cache"
	"github.com/example/openvalve/services/catalog/internal/catalog"
	"github.com/example/openvalve/services/catalog/internal/metrics"
	"github.com/example/openvalve/services/catalog/internal/steam"
	"github.com/example/openvalve/services/catalog/internal/store"
)

type lookupResponse struct {
	AppID       int64       `json:"appid"`
	Name        string      `json:"name"`
	Price       store.Price `json:"price"`
	Description string      `json:"description"`
	Tags        []string    `json:"tags"`
}

type sampleResponse struct {
	AppID       int64       `json:"appid"`
	Name        string      `json:"name"`
	Price       store.Price `json:"price"`
	HeaderImage string      `json:"header_image"`
	Description string      `json:"description"`
	Tags        []string    `json:"tags"`
}

func toLookupResponse(g store.Game) lookupResponse {
	return lookupResponse{
		AppID:       g.AppID,
		Name:        g.Name,
		Price:       g.Price,
		Description: g.Description,
		Tags:        nonNil(g.Tags),
	}
}

func toSampleResponse(g store.Game) sampleResponse {
	return sampleResponse{
		AppID:       g.AppID,
		Name:        g.Name,
		Price:       g.Price,
		HeaderImage: g.HeaderImage,
		Description: g.Description,
		Tags:        nonNil(g.Tags),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// GamesDeps groups what the /api/games handlers read from.
type GamesDeps struct {
	Catalog *catalog.Service
	Steam   steam.Provider
	// Cache is optional.
	Cache   cache.Cache
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

func (d GamesDeps) withDefaults() GamesDeps {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return d
}

// Games handles GET /api/games. The query selects the mode:
// steamid returns the user's library enriched with local data, appid is a
// point lookup, and otherwise a random sample of up to limit games.
func Games(d GamesDeps) http.HandlerFunc {
	d = d.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case strings.TrimSpace(q.Get("steamid")) != "":
			ownedGames(d, w, r, strings.TrimSpace(q.Get("steamid")))
		case strings.TrimSpace(q.Get("appid")) != "":
			lookupGame(d, w, r, strings.TrimSpace(q.Get("appid")))
		default:
			sampleGames(d, w, r, strings.TrimSpace(q.Get("limit")))
		}
	}
}

// GameByID handles GET /api/games/{appid}
func GameByID(d GamesDeps) http.HandlerFunc {
	d = d.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		lookupGame(d, w, r, strings.TrimSpace(chi.URLParam(r, "appid")))
	}
}

func ownedGames(d GamesDeps, w http.ResponseWriter, r *http.Request, input string) {
	rid := httpserver.RequestIDFromContext(r.Context())

	steamID, err := d.Steam.ResolveSteamID(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, steam.ErrNoAPIKey):
			api.WriteError(w, http.StatusInternalServerError, "CONFIG", "Server missing STEAM_API_KEY", rid, nil)
		case errors.Is(err, steam.ErrNotFound):
			api.NotFound(w, "USER_NOT_FOUND", "User not found", rid)
		default:
			d.Log.Warn("resolve steam id failed", zap.String("input", input), zap.Error(err))
			api.BadGateway(w, "UPSTREAM", "Failed to fetch from Steam API", rid)
		}
		return
	}

	descs, err := d.Steam.GetOwnedGames(r.Context(), steamID)
	if err != nil {
		d.Log.Warn("owned games failed", zap.String("steam_id", steamID), zap.Error(err))
		api.BadGateway(w, "UPSTREAM", "Failed to fetch from Steam API", rid)
		return
	}

	res := d.Catalog.Enrich(r.Context(), descs)
	if res.Degraded != nil {
		w.Header().Set("X-Enrichment-Degraded", "true")
	}
	api.WriteJSON(w, http.StatusOK, res.Games)
}

func lookupGame(d GamesDeps, w http.ResponseWriter, r *http.Request, raw string) {
	rid := httpserver.RequestIDFromContext(r.Context())

	appID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || appID <= 0 {
		api.BadRequest(w, "INVALID_APPID", "appid must be a positive integer", rid, map[string]any{"appid": raw})
		return
	}

	key := "game:" + strconv.FormatInt(appID, 10)
	if d.Cache != nil {
		var cached []lookupResponse
		if hit, err := d.Cache.Get(r.Context(), key, &cached); err == nil && hit {
			d.Metrics.Cache(true)
			api.WriteJSON(w, http.StatusOK, cached)
			return
		}
		d.Metrics.Cache(false)
	}

	games, err := d.Catalog.Lookup(r.Context(), appID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			api.NotFound(w, "NOT_FOUND", "Game not found in database", rid)
			return
		}
		d.Log.Error("lookup failed", zap.Int64("app_id", appID), zap.Error(err))
		api.Internal(w, rid)
		return
	}

	out := make([]lookupResponse, 0, len(games))
	for _, g := range games {
		out = append(out, toLookupResponse(g))
	}
	if d.Cache != nil {
		if err := d.Cache.Set(r.Context(), key, out); err != nil {
			d.Log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func sampleGames(d GamesDeps, w http.ResponseWriter, r *http.Request, raw string) {
	rid := httpserver.RequestIDFromContext(r.Context())

	limit := 0
	if raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			api.BadRequest(w, "INVALID_LIMIT", "limit must be an integer", rid, map[string]any{"limit": raw})
			return
		}
		limit = n
	}

	games, err := d.Catalog.Sample(r.Context(), limit)
	if err != nil {
		d.Log.Error("sample failed", zap.Int("limit", limit), zap.Error(err))
		api.Internal(w, rid)
		return
	}
	out := make([]sampleResponse, 0, len(games))
	for _, g := range games {
		out = append(out, toSampleResponse(g))
	}
	api.WriteJSON(w, http.StatusOK, out)
}
