// Package handlers holds the catalog service's HTTP handlers.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/openvalve/internal/platform/api"
	"github.com/example/openvalve/internal/platform/httpserver"
	"github.com/example/openvalve/services/catalog/internal/steam"
)

// Status handles GET /api/status
func Status() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "online", "backend": "catalog"})
	}
}

// User handles GET /api/user?steamid=
func User(sp steam.Provider, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		input := strings.TrimSpace(r.URL.Query().Get("steamid"))
		if input == "" {
			api.BadRequest(w, "MISSING_PARAMS", "Missing params", rid, nil)
			return
		}

		steamID, err := sp.ResolveSteamID(r.Context(), input)
		if err != nil {
			switch {
			case errors.Is(err, steam.ErrNoAPIKey):
				api.BadRequest(w, "MISSING_PARAMS", "Missing params", rid, nil)
			case errors.Is(err, steam.ErrNotFound):
				api.NotFound(w, "USER_NOT_FOUND", "User not found or private", rid)
			default:
				log.Warn("resolve steam id failed", zap.String("input", input), zap.Error(err))
				api.BadGateway(w, "UPSTREAM", "Failed to fetch from Steam API", rid)
			}
			return
		}

		players, err := sp.GetPlayerSummaries(r.Context(), []string{steamID})
		if err != nil {
			log.Warn("player summaries failed", zap.String("steam_id", steamID), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		if len(players) == 0 {
			api.NotFound(w, "USER_NOT_FOUND", "User not found", rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, players[0])
	}
}

// Friends handles GET /api/friends?steamid=
func Friends(sp steam.Provider, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		input := strings.TrimSpace(r.URL.Query().Get("steamid"))
		if input == "" {
			api.BadRequest(w, "MISSING_PARAMS", "Missing params", rid, nil)
			return
		}

		steamID, err := sp.ResolveSteamID(r.Context(), input)
		if err == nil {
			var players []steam.Player
			players, err = sp.GetFriendSummaries(r.Context(), steamID)
			if err == nil {
				api.WriteJSON(w, http.StatusOK, players)
				return
			}
		}
		if errors.Is(err, steam.ErrNoAPIKey) {
			api.BadRequest(w, "MISSING_PARAMS", "Missing params", rid, nil)
			return
		}
		log.Warn("fetch friends failed", zap.String("input", input), zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "FRIENDS_UNAVAILABLE",
			"Failed to fetch friends. Profile might be private.", rid, nil)
	}
}
