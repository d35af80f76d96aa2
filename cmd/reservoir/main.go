// Command reservoir acquires usable-volume chronicles of navigation reservoirs
// from the AGHyRE webservice and reports their filling state.
//
// Usage:
//
//	reservoir --run run.yaml fetch
//	reservoir --run run.yaml report --date 2024-06
//	reservoir --run run.yaml serve
//	reservoir --run run.yaml check
package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/couchcryptid/reservoir-volume-etl/internal/adapter/catalog"
	"github.com/couchcryptid/reservoir-volume-etl/internal/adapter/chronicle"
	"github.com/couchcryptid/reservoir-volume-etl/internal/config"
	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
	"github.com/couchcryptid/reservoir-volume-etl/internal/observability"
	"github.com/couchcryptid/reservoir-volume-etl/internal/pipeline"
)

// CLI is the command-line grammar.
type CLI struct {
	Run string `short:"r" help:"Run file describing catalogs, period and outputs." default:"run.yaml" type:"path"`

	Fetch  FetchCmd  `cmd:"" help:"Download the chronicles of every catalog from the webservice."`
	Report ReportCmd `cmd:"" help:"Compute the synthesis of a month and publish it."`
	Serve  ServeCmd  `cmd:"" help:"Serve reports, health and metrics over HTTP."`
	Check  CheckCmd  `cmd:"" help:"Validate the run file, catalogs, reference workbook and chronicles offline."`
}

// App carries what every command shares.
type App struct {
	RunPath string
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("reservoir"),
		kong.Description("Usable-volume monitoring of navigation reservoirs."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	app := &App{
		RunPath: cli.Run,
		Config:  cfg,
		Logger:  observability.NewLogger(cfg.LogLevel, cfg.LogFormat),
		Metrics: observability.NewMetrics(),
	}

	if err := kctx.Run(app); err != nil {
		app.Logger.Error("command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}

// newReporter wires the reporting pipeline of a run onto its chronicle
// directory, rubrique files and optional reference workbook.
func newReporter(app *App, run *config.Run) *pipeline.Reporter {
	var reference pipeline.ReferenceReader
	if run.Reference.Path != "" {
		layout := catalog.Layout{Sheet: run.Reference.Sheet, HeaderRow: run.Reference.HeaderRow}
		reference = func() ([]domain.Station, error) {
			return catalog.ReadReference(run.Reference.Path, layout)
		}
	}

	return pipeline.NewReporter(pipeline.ReporterOptions{
		Sources:    run.Catalogs,
		Chronicles: chronicle.NewStore(run.Results),
		Rubriques:  catalog.ReadRubriques,
		Reference:  reference,
		Window:     run.Availability,
		CacheSize:  app.Config.ReportCacheSize,
	}, app.Logger, app.Metrics)
}
