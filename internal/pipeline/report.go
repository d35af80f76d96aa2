package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/reservoir-volume-etl/internal/config"
	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
	"github.com/couchcryptid/reservoir-volume-etl/internal/observability"
)

// ErrNoSnapshot is returned by report queries before the first Load.
var ErrNoSnapshot = errors.New("no canonical snapshot loaded")

// Snapshot is the immutable result of one Load: the canonical monthly table
// and the views derived from it.
type Snapshot struct {
	Table        domain.Table
	Catalog      domain.Catalog
	Names        map[string]string // display names from the rubrique files
	Availability domain.Availability
	Annual       domain.AnnualPivot
	LoadedAt     time.Time

	seq uint64 // load sequence, part of the report cache key
}

// Reporter loads chronicles into a canonical snapshot and serves synthesis
// reports from it. Reports are cached per reference month until the next Load.
type Reporter struct {
	sources    []config.CatalogSource
	chronicles ChronicleReader
	rubriques  CatalogReader
	reference  ReferenceReader
	window     domain.Window
	logger     *slog.Logger
	metrics    *observability.Metrics

	snapshot atomic.Pointer[Snapshot]
	loads    atomic.Uint64
	cache    *lruCache[domain.Report]
}

// ReporterOptions configures a Reporter. Rubriques and Reference are optional.
type ReporterOptions struct {
	Sources    []config.CatalogSource
	Chronicles ChronicleReader
	Rubriques  CatalogReader
	Reference  ReferenceReader
	Window     domain.Window
	CacheSize  int
}

// NewReporter creates a Reporter.
func NewReporter(opts ReporterOptions, logger *slog.Logger, metrics *observability.Metrics) *Reporter {
	return &Reporter{
		sources:    opts.Sources,
		chronicles: opts.Chronicles,
		rubriques:  opts.Rubriques,
		reference:  opts.Reference,
		window:     opts.Window,
		logger:     logger,
		metrics:    metrics,
		cache:      newLRUCache[domain.Report](opts.CacheSize),
	}
}

// Load reads every chronicle, normalizes them into the canonical series and
// swaps in the new snapshot.
func (r *Reporter) Load(ctx context.Context) (*Snapshot, error) {
	sources := make([]domain.Source, 0, len(r.sources))
	names := make(map[string]string)
	for _, s := range r.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := r.chronicles.ReadCatalog(s.Path)
		if err != nil {
			return nil, fmt.Errorf("load chronicle of %s: %w", s.Path, err)
		}
		sources = append(sources, domain.Source{Name: s.Path, Table: t, Scale: s.Scale})

		if r.rubriques != nil {
			rubs, err := r.rubriques(s.Path)
			if err != nil {
				r.logger.Warn("station names unavailable", "catalog", s.Path, "error", err)
				continue
			}
			for _, rub := range rubs {
				names[rub.ID] = rub.Name
			}
		}
	}

	table, err := domain.Normalize(sources)
	if err != nil {
		return nil, err
	}

	catalog := domain.Catalog{}
	if r.reference != nil {
		stations, err := r.reference()
		if err != nil {
			return nil, fmt.Errorf("load reference: %w", err)
		}
		catalog = domain.NewCatalog(stations)
	}

	snap := &Snapshot{
		Table:        table,
		Catalog:      catalog,
		Names:        names,
		Availability: domain.BuildAvailability(table, r.window),
		Annual:       domain.BuildAnnualPivot(table),
		LoadedAt:     domain.Now(),
		seq:          r.loads.Add(1),
	}
	r.snapshot.Store(snap)
	r.cache.purge()
	r.metrics.SnapshotLoadedAt.Set(float64(snap.LoadedAt.Unix()))

	r.logger.Info("canonical snapshot loaded",
		"stations", len(table.Stations),
		"months", table.Len(),
		"reference_stations", len(catalog),
	)
	return snap, nil
}

// Snapshot returns the current snapshot, nil before the first Load.
func (r *Reporter) Snapshot() *Snapshot {
	return r.snapshot.Load()
}

// CheckReadiness returns nil once a snapshot is loaded.
func (r *Reporter) CheckReadiness(_ context.Context) error {
	if r.snapshot.Load() == nil {
		return ErrNoSnapshot
	}
	return nil
}

// Report returns the synthesis at the month of refDate.
func (r *Reporter) Report(refDate time.Time) (domain.Report, error) {
	snap := r.snapshot.Load()
	if snap == nil {
		return domain.Report{}, ErrNoSnapshot
	}

	key := reportKey(snap, refDate)
	if report, ok := r.cache.get(key); ok {
		r.metrics.SynthesisCache.WithLabelValues("hit").Inc()
		return report, nil
	}
	r.metrics.SynthesisCache.WithLabelValues("miss").Inc()

	report := domain.Synthesize(snap.Table, snap.Catalog, refDate)
	for i := range report.Rows {
		if report.Rows[i].Name == "" {
			report.Rows[i].Name = snap.Names[report.Rows[i].StationID]
		}
	}
	r.metrics.StationsSynthesized.Add(float64(len(report.Rows)))

	r.cache.put(key, report)
	return report, nil
}

// reportKey scopes a cached report to the snapshot it was computed from, so a
// report racing a Load is never served from the newer snapshot.
func reportKey(snap *Snapshot, refDate time.Time) string {
	return fmt.Sprintf("%d/%s", snap.seq, refDate.Format("2006-01"))
}

// Availability rebuilds the grid over another window.
func (r *Reporter) Availability(w domain.Window) (domain.Availability, error) {
	snap := r.snapshot.Load()
	if snap == nil {
		return domain.Availability{}, ErrNoSnapshot
	}
	return domain.BuildAvailability(snap.Table, w), nil
}

// DefaultWindow is the availability window of the run.
func (r *Reporter) DefaultWindow() domain.Window {
	return r.window
}

// Annual returns the monthly totals per year of the current snapshot.
func (r *Reporter) Annual() (domain.AnnualPivot, error) {
	snap := r.snapshot.Load()
	if snap == nil {
		return domain.AnnualPivot{}, ErrNoSnapshot
	}
	return snap.Annual, nil
}
