package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/reservoir-volume-etl/internal/adapter/aghyre"
	"github.com/couchcryptid/reservoir-volume-etl/internal/adapter/catalog"
	"github.com/couchcryptid/reservoir-volume-etl/internal/adapter/chronicle"
	"github.com/couchcryptid/reservoir-volume-etl/internal/adapter/sandre"
	"github.com/couchcryptid/reservoir-volume-etl/internal/config"
	"github.com/couchcryptid/reservoir-volume-etl/internal/pipeline"
)

// FetchCmd runs the acquisition of every catalog of the run.
type FetchCmd struct{}

func (c *FetchCmd) Run(app *App) error {
	cfg := app.Config
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}
	run, err := config.LoadRun(app.RunPath)
	if err != nil {
		return err
	}

	client := aghyre.NewClient(aghyre.ClientConfig{
		BaseURL:            cfg.AghyreURL,
		Login:              cfg.AghyreLogin,
		Password:           cfg.AghyrePassword,
		Codification:       cfg.AghyreCodification,
		InsecureSkipVerify: cfg.AghyreInsecureTLS,
		Timeout:            cfg.AghyreTimeout,
	}, app.Logger, app.Metrics)

	policy := pipeline.RetryPolicy{
		MaxRetries: cfg.FetchMaxRetries,
		MaxElapsed: cfg.FetchRetryMaxElapsed,
	}
	open := func() pipeline.Session {
		var s pipeline.Session = client.Open()
		if policy.Enabled() {
			s = pipeline.NewRetryingSession(s, policy, app.Logger, app.Metrics)
		}
		return s
	}

	acq := pipeline.NewAcquisition(open, sandre.Decode, catalog.ReadRubriques, chronicle.NewStore(run.Results), app.Logger, app.Metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return acq.Run(ctx, run)
}
