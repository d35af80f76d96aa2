package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/reservoir-volume-etl/internal/adapter/kafka"
	"github.com/couchcryptid/reservoir-volume-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/reservoir-volume-etl/internal/config"
	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
	"github.com/couchcryptid/reservoir-volume-etl/internal/pipeline"
)

// ReportCmd computes the synthesis of one month from the chronicles, prints it
// as JSON and optionally publishes it to the configured sinks.
type ReportCmd struct {
	Date    string `help:"Reference month (YYYY-MM). Defaults to the current month."`
	Publish bool   `help:"Publish to Kafka and SQLite when KAFKA_BROKERS or SQLITE_PATH is set."`
}

// reportOutput is what the command prints.
type reportOutput struct {
	Report       domain.Report       `json:"report"`
	Availability domain.Availability `json:"availability"`
	Annual       domain.AnnualPivot  `json:"annual"`
}

func (c *ReportCmd) Run(app *App) error {
	refDate := domain.MonthStart(domain.Now())
	if c.Date != "" {
		d, err := time.Parse("2006-01", c.Date)
		if err != nil {
			return fmt.Errorf("%w: --date must be YYYY-MM", domain.ErrConfig)
		}
		refDate = d
	}

	run, err := config.LoadRun(app.RunPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reporter := newReporter(app, run)
	snap, err := reporter.Load(ctx)
	if err != nil {
		return err
	}
	report, err := reporter.Report(refDate)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reportOutput{Report: report, Availability: snap.Availability, Annual: snap.Annual}); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if !c.Publish {
		return nil
	}
	return publish(ctx, app, snap, report)
}

// publish sends the report to every configured sink.
func publish(ctx context.Context, app *App, snap *pipeline.Snapshot, report domain.Report) error {
	cfg := app.Config
	if len(cfg.KafkaBrokers) == 0 && cfg.SQLitePath == "" {
		app.Logger.Warn("no sink configured, nothing published")
		return nil
	}

	if len(cfg.KafkaBrokers) > 0 {
		w := kafka.NewWriter(cfg, app.Logger)
		err := w.PublishReport(ctx, report, snap.Annual)
		if closeErr := w.Close(); closeErr != nil {
			app.Logger.Error("kafka writer close error", "error", closeErr)
		}
		if err != nil {
			return err
		}
		app.Metrics.ReportsPublished.WithLabelValues("kafka").Inc()
	}

	if cfg.SQLitePath != "" {
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()

		exporter := sqlite.New(db, app.Logger)
		if err := exporter.Migrate(ctx); err != nil {
			return err
		}
		if err := exporter.Export(ctx, sqlite.Dataset{
			Table:        snap.Table,
			Report:       report,
			Availability: snap.Availability,
		}); err != nil {
			return err
		}
		app.Metrics.ReportsPublished.WithLabelValues("sqlite").Inc()
	}
	return nil
}
