// Package run drives a long-lived process until SIGINT/SIGTERM and then
// shuts it down within a bounded grace period.
package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const DefaultGrace = 10 * time.Second

type Runner struct {
	Logger *zap.Logger
	Grace  time.Duration
}

func New(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{Logger: log, Grace: DefaultGrace}
}

// WithSignals runs start until it returns or a termination signal arrives,
// then calls shutdown. The result is a process exit code.
func (r *Runner) WithSignals(start func(ctx context.Context) error, shutdown func(ctx context.Context) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return r.Until(ctx, start, shutdown)
}

// Until is WithSignals with the stop condition supplied by ctx.
func (r *Runner) Until(ctx context.Context, start func(ctx context.Context) error, shutdown func(ctx context.Context) error) int {
	errCh := make(chan error, 1)
	go func() {
		errCh <- start(ctx)
	}()

	code := 0
	select {
	case <-ctx.Done():
		r.Logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.Logger.Error("service exited with error", zap.Error(err))
			code = 1
		}
	}

	if shutdown != nil {
		c, cancel := context.WithTimeout(context.Background(), r.Grace)
		defer cancel()
		if err := shutdown(c); err != nil {
			r.Logger.Warn("graceful shutdown failed", zap.Error(err))
		}
	}
	return code
}

func Exit(code int) {
	os.Exit(code)
}
