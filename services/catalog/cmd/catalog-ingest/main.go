// Command catalog-ingest bulk loads a games.json export into Postgres.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/example/openvalve/internal/platform/config"
	"github.com/example/openvalve/internal/platform/db"
	"github.com/example/openvalve/internal/platform/events"
	"github.com/example/openvalve/internal/platform/logging"
	"github.com/example/openvalve/internal/platform/natsconn"
	"github.com/example/openvalve/internal/platform/run"
	"github.com/example/openvalve/services/catalog/internal/ingest"
	catalogstore "github.com/example/openvalve/services/catalog/internal/store"
)

func main() {
	run.Exit(ingestMain())
}

func ingestMain() int {
	defaultSource := strings.TrimSpace(os.Getenv("DATA_FILE"))
	if defaultSource == "" {
		defaultSource = "games.json"
	}
	source := flag.String("source", defaultSource, "path to the games.json export")
	batch := flag.Int("batch", ingest.DefaultBatchSize, "games per committed batch")
	reset := flag.Bool("reset", true, "drop and recreate the games table first")
	pipeline := flag.Bool("pipeline", false, "decode the next batch while the previous one commits")
	flag.Parse()

	if os.Getenv("SERVICE_NAME") == "" {
		_ = os.Setenv("SERVICE_NAME", "catalog-ingest")
	}
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if *batch <= 0 {
		log.Error("invalid batch size", zap.Int("batch", *batch))
		return 2
	}

	f, err := os.Open(*source)
	if err != nil {
		log.Error("open source", zap.String("source", *source), zap.Error(err))
		return 1
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCfg, err := db.LoadConfig()
	if err != nil {
		log.Error("db config", zap.Error(err))
		return 1
	}
	pool, err := db.Open(ctx, dbCfg)
	if err != nil {
		log.Error("db open", zap.Error(err))
		return 1
	}
	defer pool.Close()

	var pub *events.Publisher
	if url := strings.TrimSpace(os.Getenv("NATS_URL")); url != "" {
		nc, err := natsconn.Connect(natsconn.Options{URL: url, Name: cfg.ServiceName, Log: log})
		if err != nil {
			log.Warn("nats unavailable; events disabled", zap.Error(err))
		} else {
			defer func() {
				_ = nc.FlushTimeout(5 * time.Second)
				nc.Close()
			}()
			pub = events.New(nc, log)
		}
	}

	job := &ingest.Job{
		Target:    catalogstore.NewPostgresCatalogStore(pool),
		BatchSize: *batch,
		Reset:     *reset,
		Pipelined: *pipeline,
		Log:       log,
		Events:    pub,
		Progress:  os.Stderr,
	}

	log.Info("ingest starting",
		zap.String("source", *source),
		zap.Int("batch", *batch),
		zap.Bool("reset", *reset),
		zap.Bool("pipeline", *pipeline))

	rep, err := job.Run(ctx, f)
	code := 0
	if err != nil {
		var de *ingest.DecodeError
		var ie *ingest.IngestionError
		switch {
		case errors.As(err, &de):
			log.Error("source document is malformed", zap.Int64("offset", de.Offset), zap.Error(err))
		case errors.As(err, &ie):
			log.Error("batch failed", zap.Int("batch", ie.Batch), zap.Int64("committed", ie.Committed), zap.Error(err))
		default:
			log.Error("ingest failed", zap.Error(err))
		}
		code = 1
	}
	log.Info("exit",
		zap.Int("code", code),
		zap.Int64("written", rep.Written),
		zap.Int64("inserted", rep.Inserted))
	return code
}
