package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/openvalve/internal/platform/config"
	"github.com/example/openvalve/internal/platform/db"
	"github.com/example/openvalve/internal/platform/httpserver"
	"github.com/example/openvalve/internal/platform/logging"
	"github.com/example/openvalve/internal/platform/natsconn"
	"github.com/example/openvalve/internal/platform/run"
	"github.com/example/openvalve/services/catalog/internal/cache"
	"github.com/example/openvalve/services/catalog/internal/catalog"
	catalogconfig "github.com/example/openvalve/services/catalog/internal/config"
	"github.com/example/openvalve/services/catalog/internal/handlers"
	"github.com/example/openvalve/services/catalog/internal/metrics"
	"github.com/example/openvalve/services/catalog/internal/steam"
	catalogstore "github.com/example/openvalve/services/catalog/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	catCfg, err := catalogconfig.Load()
	if err != nil {
		log.Error("load catalog config", zap.Error(err))
		run.Exit(1)
	}
	if catCfg.Steam.APIKey == "" {
		log.Warn("STEAM_API_KEY not set; Steam-backed endpoints will fail")
	}

	// db
	dbCfg, err := db.LoadConfig()
	if err != nil {
		log.Error("db config", zap.Error(err))
		run.Exit(1)
	}
	pool, err := db.Open(context.Background(), dbCfg)
	if err != nil {
		log.Error("db open", zap.Error(err))
		run.Exit(1)
	}
	defer pool.Close()

	m := metrics.New()

	// cache
	var c cache.Cache
	if catCfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedisCache(catCfg.Cache.RedisURL, "catalog:", catCfg.Cache.TTL)
		if err != nil {
			log.Error("redis cache", zap.Error(err))
			run.Exit(1)
		}
		defer rc.Close()
		c = rc
	} else {
		c = cache.NewTTLCache(catCfg.Cache.TTL)
	}

	if catCfg.NATS.URL != "" {
		nc, err := natsconn.Connect(natsconn.Options{URL: catCfg.NATS.URL, Name: cfg.ServiceName, Log: log})
		if err != nil {
			log.Error("nats connect", zap.Error(err))
			run.Exit(1)
		}
		defer nc.Close()
		if _, err := cache.SubscribeFlush(nc, catCfg.NATS.InvalidationSubject, c, log); err != nil {
			log.Error("cache invalidation subscribe", zap.Error(err))
			run.Exit(1)
		}
	}

	sc := steam.New(catCfg.Steam.BaseURL, catCfg.Steam.APIKey)
	sc.FriendsLimit = catCfg.Steam.FriendsLimit
	sc.Cache = c
	sc.Metrics = m

	svc := catalog.New(catalogstore.NewPostgresCatalogStore(pool), log, m)

	r := chi.NewRouter()
	r.Use(httpserver.AccessLog(log))
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Ping(ctx)
		},
		RequestIDHeader: cfg.HTTP.RequestIDHeader,
		Log:             log,
	})
	r.Handle("/metrics", m.Handler())
	handlers.Mount(r, handlers.GamesDeps{
		Catalog: svc,
		Steam:   sc,
		Cache:   c,
		Metrics: m,
		Log:     log,
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, Router: r})

	code := run.New(log).WithSignals(
		func(context.Context) error { return srv.Start(log) },
		srv.Shutdown,
	)

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
