// Package steam is a small client for the Steam Web API endpoints the
// catalog service proxies: vanity resolution, player summaries, friend lists
// and owned games.
package steam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/openvalve/services/catalog/internal/cache"
	"github.com/example/openvalve/services/catalog/internal/enrich"
	"github.com/example/openvalve/services/catalog/internal/metrics"
)

const (
	DefaultBaseURL      = "https://api.steampowered.com"
	DefaultFriendsLimit = 50

	// GetPlayerSummaries accepts at most this many ids per call.
	maxSummaryIDs = 100
)

var (
	// ErrNotFound means the identifier could not be resolved or the player
	// does not exist.
	ErrNotFound = errors.New("steam: not found")
	// ErrNoAPIKey is returned by every call when the client has no key.
	ErrNoAPIKey = errors.New("steam: api key not configured")
)

// StatusError is a non-200 response from the Web API.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("steam: %s: status %d body=%q", e.Endpoint, e.Code, e.Body)
}

// Player is a player summary exactly as Steam returned it.
type Player map[string]any

type Provider interface {
	ResolveSteamID(ctx context.Context, input string) (string, error)
	GetPlayerSummaries(ctx context.Context, steamIDs []string) ([]Player, error)
	GetFriendSummaries(ctx context.Context, steamID string) ([]Player, error)
	GetOwnedGames(ctx context.Context, steamID string) ([]enrich.Descriptor, error)
}

type Client struct {
	BaseURL      string
	APIKey       string
	HTTPClient   *http.Client
	FriendsLimit int
	// Cache holds resolved vanity names. Optional.
	Cache   cache.Cache
	Metrics *metrics.Metrics
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       apiKey,
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
		FriendsLimit: DefaultFriendsLimit,
	}
}

// IsSteamID reports whether s is already a 64-bit SteamID in its 17-digit
// decimal form.
func IsSteamID(s string) bool {
	if len(s) != 17 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ResolveSteamID returns input unchanged when it is already a SteamID and
// otherwise treats it as a vanity name.
func (c *Client) ResolveSteamID(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if IsSteamID(input) {
		return input, nil
	}
	if input == "" {
		return "", ErrNotFound
	}

	key := "vanity:" + strings.ToLower(input)
	if c.Cache != nil {
		var id string
		hit, err := c.Cache.Get(ctx, key, &id)
		if err == nil && hit {
			c.Metrics.Cache(true)
			return id, nil
		}
		c.Metrics.Cache(false)
	}

	var out struct {
		Response struct {
			Success int    `json:"success"`
			SteamID string `json:"steamid"`
		} `json:"response"`
	}
	params := url.Values{"vanityurl": {input}}
	if err := c.get(ctx, "ISteamUser/ResolveVanityURL/v0001", params, &out); err != nil {
		return "", err
	}
	if out.Response.Success != 1 || out.Response.SteamID == "" {
		return "", ErrNotFound
	}
	if c.Cache != nil {
		_ = c.Cache.Set(ctx, key, out.Response.SteamID)
	}
	return out.Response.SteamID, nil
}

func (c *Client) GetPlayerSummaries(ctx context.Context, steamIDs []string) ([]Player, error) {
	players := make([]Player, 0, len(steamIDs))
	for start := 0; start < len(steamIDs); start += maxSummaryIDs {
		end := min(start+maxSummaryIDs, len(steamIDs))
		var out struct {
			Response struct {
				Players []Player `json:"players"`
			} `json:"response"`
		}
		params := url.Values{"steamids": {strings.Join(steamIDs[start:end], ",")}}
		if err := c.get(ctx, "ISteamUser/GetPlayerSummaries/v0002", params, &out); err != nil {
			return nil, err
		}
		players = append(players, out.Response.Players...)
	}
	return players, nil
}

// GetFriendIDs lists the SteamIDs on a user's friend list in the order Steam
// returns them.
func (c *Client) GetFriendIDs(ctx context.Context, steamID string) ([]string, error) {
	var out struct {
		FriendsList struct {
			Friends []struct {
				SteamID string `json:"steamid"`
			} `json:"friends"`
		} `json:"friendslist"`
	}
	params := url.Values{"steamid": {steamID}, "relationship": {"friend"}}
	if err := c.get(ctx, "ISteamUser/GetFriendList/v0001", params, &out); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(out.FriendsList.Friends))
	for _, f := range out.FriendsList.Friends {
		if f.SteamID != "" {
			ids = append(ids, f.SteamID)
		}
	}
	return ids, nil
}

// GetFriendSummaries returns summaries for the first FriendsLimit friends.
func (c *Client) GetFriendSummaries(ctx context.Context, steamID string) ([]Player, error) {
	ids, err := c.GetFriendIDs(ctx, steamID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Player{}, nil
	}
	limit := c.FriendsLimit
	if limit <= 0 {
		limit = DefaultFriendsLimit
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return c.GetPlayerSummaries(ctx, ids)
}

// GetOwnedGames returns the user's library including app info and played
// free games. Entries without a usable appid are dropped.
func (c *Client) GetOwnedGames(ctx context.Context, steamID string) ([]enrich.Descriptor, error) {
	var out struct {
		Response struct {
			Games []map[string]any `json:"games"`
		} `json:"response"`
	}
	params := url.Values{
		"steamid":                   {steamID},
		"include_appinfo":           {"1"},
		"include_played_free_games": {"1"},
		"format":                    {"json"},
	}
	if err := c.get(ctx, "IPlayerService/GetOwnedGames/v0001", params, &out); err != nil {
		return nil, err
	}
	descs := make([]enrich.Descriptor, 0, len(out.Response.Games))
	for _, g := range out.Response.Games {
		n, ok := g["appid"].(json.Number)
		if !ok {
			continue
		}
		id, err := n.Int64()
		if err != nil {
			continue
		}
		delete(g, "appid")
		descs = append(descs, enrich.Descriptor{AppID: id, Fields: g})
	}
	return descs, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("key", c.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/"+endpoint+"/?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "openvalve-catalog/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Metrics.UpstreamError(endpoint)
		return fmt.Errorf("steam: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		c.Metrics.UpstreamError(endpoint)
		return err
	}
	if resp.StatusCode != http.StatusOK {
		c.Metrics.UpstreamError(endpoint)
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: string(b[:min(len(b), 200)])}
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		c.Metrics.UpstreamError(endpoint)
		return fmt.Errorf("steam: %s: decode error: %w body=%q", endpoint, err, string(b[:min(len(b), 200)]))
	}
	return nil
}
