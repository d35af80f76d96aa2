package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/reservoir-volume-etl/internal/config"
	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
	"github.com/couchcryptid/reservoir-volume-etl/internal/observability"
	"github.com/couchcryptid/reservoir-volume-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// reportFixture stores a Mm3 chronicle for station A (10 years of June at 50,
// May 2024 at 42, June 2024 at 38) and an m3 chronicle for station B.
func reportFixture() *memoryStore {
	store := newMemoryStore()

	var dates []time.Time
	for y := 2015; y <= 2023; y++ {
		dates = append(dates, month(y, time.June))
	}
	dates = append(dates, month(2024, time.May), month(2024, time.June))
	a := domain.NewTable([]string{"A"}, dates)
	for i := range dates {
		a.Values[i][0] = 50
	}
	a.Values[len(dates)-2][0] = 42
	a.Values[len(dates)-1][0] = 38
	store.tables["mm3.csv"] = a

	b := domain.NewTable([]string{"B"}, []time.Time{time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)})
	b.Values[0][0] = 2_500_000
	store.tables["m3.csv"] = b
	return store
}

func newTestReporter(store *memoryStore, metrics *observability.Metrics) *pipeline.Reporter {
	return pipeline.NewReporter(pipeline.ReporterOptions{
		Sources: []config.CatalogSource{
			{Path: "mm3.csv", Scale: 1},
			{Path: "m3.csv", Scale: 1e-6},
		},
		Chronicles: store,
		Rubriques:  fakeCatalogs(map[string][]string{"mm3.csv": {"A"}, "m3.csv": {"B"}}),
		Reference: func() ([]domain.Station, error) {
			return []domain.Station{{ID: "A", Name: "Panthier", Region: "Centre-Bourgogne", Waterway: "Canal de Bourgogne", Capacity: 100}}, nil
		},
		Window:    domain.Window{From: month(2024, time.January), To: month(2024, time.June)},
		CacheSize: 4,
	}, observability.DiscardLogger(), metrics)
}

func TestReporter_LoadAndReport(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 7, 2, 8, 0, 0, 0, time.UTC))
	domain.SetClock(clock)
	t.Cleanup(func() { domain.SetClock(clockwork.NewRealClock()) })

	metrics := observability.NewMetricsForTesting()
	r := newTestReporter(reportFixture(), metrics)

	require.ErrorIs(t, r.CheckReadiness(context.Background()), pipeline.ErrNoSnapshot)
	_, err := r.Report(month(2024, time.June))
	require.ErrorIs(t, err, pipeline.ErrNoSnapshot)

	snap, err := r.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, r.CheckReadiness(context.Background()))
	assert.Same(t, snap, r.Snapshot())
	assert.Equal(t, []string{"A", "B"}, snap.Table.Stations)
	assert.Equal(t, clock.Now(), snap.LoadedAt)

	b, ok := snap.Table.Value(month(2024, time.June), "B")
	require.True(t, ok)
	assert.InDelta(t, 2.5, b, 1e-12)

	report, err := r.Report(time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)

	// B has no reference metadata, so its empty region sorts first.
	rowB, rowA := report.Rows[0], report.Rows[1]
	assert.Equal(t, "B", rowB.StationID)
	assert.Equal(t, "Reservoir B", rowB.Name, "name taken from the rubrique file")
	assert.Nil(t, rowB.FillRatio)

	assert.Equal(t, "Panthier", rowA.Name)
	assert.Equal(t, domain.StatusLow, rowA.Status)
	assert.Equal(t, domain.TrendDown, rowA.TrendClass)

	assert.True(t, snap.Availability.Present[5][1], "B present in June 2024")
	assert.False(t, snap.Availability.Present[0][1], "B absent in January 2024")
	assert.InDelta(t, 40.5, snap.Annual.Value(time.June, 2024), 1e-9)

	annual, err := r.Annual()
	require.NoError(t, err)
	assert.Equal(t, snap.Annual.Years, annual.Years)
}

func TestReporter_ReportCachedPerMonth(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	r := newTestReporter(reportFixture(), metrics)
	_, err := r.Load(context.Background())
	require.NoError(t, err)

	_, err = r.Report(month(2024, time.June))
	require.NoError(t, err)
	_, err = r.Report(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SynthesisCache.WithLabelValues("miss")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SynthesisCache.WithLabelValues("hit")), 0)

	_, err = r.Load(context.Background())
	require.NoError(t, err)
	_, err = r.Report(month(2024, time.June))
	require.NoError(t, err)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.SynthesisCache.WithLabelValues("miss")), 0, "reload purges the cache")
}

func TestReporter_Availability(t *testing.T) {
	r := newTestReporter(reportFixture(), observability.NewMetricsForTesting())
	_, err := r.Availability(domain.Window{From: month(2015, time.January), To: month(2024, time.December)})
	require.ErrorIs(t, err, pipeline.ErrNoSnapshot)

	_, err = r.Annual()
	require.ErrorIs(t, err, pipeline.ErrNoSnapshot)

	_, err = r.Load(context.Background())
	require.NoError(t, err)

	a, err := r.Availability(domain.Window{From: month(2015, time.January), To: month(2024, time.December)})
	require.NoError(t, err)
	assert.Len(t, a.Months, 120)
	assert.InDelta(t, 11.0/120, a.Coverage("A"), 1e-9)
	assert.Equal(t, month(2024, time.January), r.DefaultWindow().From)
}

func TestReporter_LoadErrors(t *testing.T) {
	t.Run("missing chronicle", func(t *testing.T) {
		store := reportFixture()
		delete(store.tables, "m3.csv")
		r := newTestReporter(store, observability.NewMetricsForTesting())

		_, err := r.Load(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "m3.csv")
		assert.Nil(t, r.Snapshot())
	})

	t.Run("reference failure", func(t *testing.T) {
		refErr := errors.New("workbook locked")
		r := pipeline.NewReporter(pipeline.ReporterOptions{
			Sources:    []config.CatalogSource{{Path: "mm3.csv", Scale: 1}},
			Chronicles: reportFixture(),
			Reference:  func() ([]domain.Station, error) { return nil, refErr },
		}, observability.DiscardLogger(), observability.NewMetricsForTesting())

		_, err := r.Load(context.Background())
		require.ErrorIs(t, err, refErr)
	})

	t.Run("station in two catalogs", func(t *testing.T) {
		store := reportFixture()
		store.tables["m3.csv"] = store.tables["mm3.csv"]
		r := newTestReporter(store, observability.NewMetricsForTesting())

		_, err := r.Load(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "station A")
	})
}
