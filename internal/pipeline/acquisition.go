package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/reservoir-volume-etl/internal/config"
	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
	"github.com/couchcryptid/reservoir-volume-etl/internal/observability"
)

// Acquisition fetches every station of every catalog of a run and writes one
// chronicle per catalog.
type Acquisition struct {
	open     OpenFunc
	decode   DecodeFunc
	catalogs CatalogReader
	store    ChronicleWriter
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewAcquisition wires an acquisition batch.
func NewAcquisition(open OpenFunc, decode DecodeFunc, catalogs CatalogReader, store ChronicleWriter, logger *slog.Logger, metrics *observability.Metrics) *Acquisition {
	return &Acquisition{
		open:     open,
		decode:   decode,
		catalogs: catalogs,
		store:    store,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run processes the catalogs in order within one session. The first failure
// aborts the run: the failing catalog gets no chronicle, chronicles of the
// catalogs already processed stay written. The session is closed on every
// exit path.
func (a *Acquisition) Run(ctx context.Context, run *config.Run) (err error) {
	a.metrics.AcquisitionRunning.Set(1)
	defer a.metrics.AcquisitionRunning.Set(0)
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		a.metrics.AcquisitionRuns.WithLabelValues(outcome).Inc()
	}()

	session := a.open()
	defer func() {
		if cerr := session.Close(); cerr != nil {
			a.logger.Warn("session close failed", "error", cerr)
		}
	}()

	a.logger.Info("acquisition started",
		"catalogs", len(run.Catalogs),
		"start", run.Start.Format(time.DateOnly),
		"end", run.End.Format(time.DateOnly),
	)

	for _, c := range run.Catalogs {
		if err := a.runCatalog(ctx, session, c, run.Start, run.End); err != nil {
			a.logger.Error("acquisition aborted", "catalog", c.Path, "error", err)
			return err
		}
	}

	a.logger.Info("acquisition complete")
	return nil
}

func (a *Acquisition) runCatalog(ctx context.Context, session Session, c config.CatalogSource, start, end time.Time) error {
	rubriques, err := a.catalogs(c.Path)
	if err != nil {
		return fmt.Errorf("read catalog %s: %w", c.Path, err)
	}

	ids := make([]string, len(rubriques))
	series := make(map[string][]domain.Observation, len(rubriques))
	for i, r := range rubriques {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids[i] = r.ID

		obs, err := a.fetchStation(ctx, session, r.ID, start, end)
		if err != nil {
			return fmt.Errorf("catalog %s: %w", c.Path, err)
		}
		series[r.ID] = obs
		a.logger.Debug("station acquired", "station", r.ID, "name", r.Name, "observations", len(obs))
	}

	table := domain.ResampleMean(domain.TableFromSeries(ids, series), c.Step)
	if err := a.store.WriteCatalog(c.Path, table); err != nil {
		return fmt.Errorf("catalog %s: %w", c.Path, err)
	}
	a.metrics.ChroniclesWritten.Inc()
	a.logger.Info("chronicle written", "catalog", c.Path, "stations", len(ids), "rows", table.Len(), "step", string(c.Step))
	return nil
}

func (a *Acquisition) fetchStation(ctx context.Context, session Session, id string, start, end time.Time) ([]domain.Observation, error) {
	payload, err := session.Fetch(ctx, id, start, end)
	if err != nil {
		return nil, err
	}

	obs, err := a.decode(payload, id)
	switch {
	case errors.Is(err, domain.ErrEmptyData):
		a.metrics.FetchRequests.WithLabelValues("empty").Inc()
		return nil, err
	case err != nil:
		a.metrics.FetchRequests.WithLabelValues("decode_error").Inc()
		return nil, err
	}
	a.metrics.ObservationsDecoded.Add(float64(len(obs)))
	return obs, nil
}
