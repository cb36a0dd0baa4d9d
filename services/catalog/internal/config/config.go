// Package config loads the catalog service settings that sit on top of the
// shared platform config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultSteamBaseURL        = "https://api.steampowered.com"
	DefaultFriendsLimit        = 50
	DefaultCacheTTL            = 5 * time.Minute
	DefaultInvalidationSubject = "catalog.ingest.completed"
)

type SteamConfig struct {
	APIKey       string
	BaseURL      string
	FriendsLimit int
}

type CacheConfig struct {
	TTL time.Duration
	// RedisURL selects the Redis backend; empty means in-process.
	RedisURL string
}

type NATSConfig struct {
	// URL empty disables cache invalidation.
	URL                 string
	InvalidationSubject string
}

type Config struct {
	Steam SteamConfig
	Cache CacheConfig
	NATS  NATSConfig
}

func Load() (Config, error) {
	cfg := Config{
		Steam: SteamConfig{
			APIKey:  env("STEAM_API_KEY"),
			BaseURL: env("STEAM_BASE_URL"),
		},
		Cache: CacheConfig{RedisURL: env("REDIS_URL")},
		NATS: NATSConfig{
			URL:                 env("NATS_URL"),
			InvalidationSubject: env("CACHE_INVALIDATION_SUBJECT"),
		},
	}
	if cfg.Steam.BaseURL == "" {
		cfg.Steam.BaseURL = DefaultSteamBaseURL
	}
	if cfg.NATS.InvalidationSubject == "" {
		cfg.NATS.InvalidationSubject = DefaultInvalidationSubject
	}

	limit, err := envInt("STEAM_FRIENDS_LIMIT", DefaultFriendsLimit)
	if err != nil {
		return Config{}, err
	}
	if limit <= 0 {
		return Config{}, fmt.Errorf("STEAM_FRIENDS_LIMIT must be positive, got %d", limit)
	}
	cfg.Steam.FriendsLimit = limit

	ttl, err := envInt("CACHE_TTL_SECONDS", int(DefaultCacheTTL/time.Second))
	if err != nil {
		return Config{}, err
	}
	if ttl <= 0 {
		return Config{}, fmt.Errorf("CACHE_TTL_SECONDS must be positive, got %d", ttl)
	}
	cfg.Cache.TTL = time.Duration(ttl) * time.Second
	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envInt(key string, fallback int) (int, error) {
	v := env(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
