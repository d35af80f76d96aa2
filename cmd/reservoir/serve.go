package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/reservoir-volume-etl/internal/adapter/http"
	"github.com/couchcryptid/reservoir-volume-etl/internal/config"
)

// ServeCmd loads the chronicles once and serves reports until interrupted.
// Readiness fails until a snapshot is loaded; POST /v1/reload refreshes it.
type ServeCmd struct{}

func (c *ServeCmd) Run(app *App) error {
	run, err := config.LoadRun(app.RunPath)
	if err != nil {
		return err
	}
	logger := app.Logger

	reporter := newReporter(app, run)
	srv := httpadapter.NewServer(app.Config.HTTPAddr, reporter, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// /healthz and /metrics keep answering when the initial load fails.
	if _, err := reporter.Load(ctx); err != nil {
		logger.Error("initial load failed", "error", err)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
