package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/reservoir-volume-etl/internal/adapter/http"
	"github.com/couchcryptid/reservoir-volume-etl/internal/config"
	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
	"github.com/couchcryptid/reservoir-volume-etl/internal/observability"
	"github.com/couchcryptid/reservoir-volume-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chronicles map[string]domain.Table

func (c chronicles) ReadCatalog(path string) (domain.Table, error) {
	t, ok := c[path]
	if !ok {
		return domain.Table{}, fmt.Errorf("no chronicle for %s", path)
	}
	return t, nil
}

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func newTestServer(t *testing.T, load bool) *httpadapter.Server {
	t.Helper()
	table := domain.NewTable([]string{"A"}, []time.Time{month(2024, time.May), month(2024, time.June)})
	table.Values[0][0] = 42
	table.Values[1][0] = 38

	reporter := pipeline.NewReporter(pipeline.ReporterOptions{
		Sources:    []config.CatalogSource{{Path: "volumes.csv", Scale: 1}},
		Chronicles: chronicles{"volumes.csv": table},
		Window:     domain.Window{From: month(2024, time.January), To: month(2024, time.June)},
		CacheSize:  4,
	}, observability.DiscardLogger(), observability.NewMetricsForTesting())
	if load {
		_, err := reporter.Load(context.Background())
		require.NoError(t, err)
	}
	return httpadapter.NewServer(":0", reporter, observability.DiscardLogger())
}

func get(srv http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(t, false), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenLoaded(t *testing.T) {
	rec := get(newTestServer(t, true), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503BeforeLoad(t *testing.T) {
	rec := get(newTestServer(t, false), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(t, false), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSynthesis(t *testing.T) {
	rec := get(newTestServer(t, true), "/v1/synthesis?date=2024-06")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report domain.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, month(2024, time.June), report.ReferenceDate)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "A", report.Rows[0].StationID)
	require.NotNil(t, report.Rows[0].Volume)
	assert.InDelta(t, 38, *report.Rows[0].Volume, 0)
}

func TestSynthesis_DefaultsToCurrentMonth(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(clockwork.NewRealClock()) })

	rec := get(newTestServer(t, true), "/v1/synthesis")
	require.Equal(t, http.StatusOK, rec.Code)

	var report domain.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, month(2024, time.May), report.ReferenceDate)
}

func TestSynthesis_InvalidDate(t *testing.T) {
	rec := get(newTestServer(t, true), "/v1/synthesis?date=06/2024")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSynthesis_NoSnapshot(t *testing.T) {
	rec := get(newTestServer(t, false), "/v1/synthesis?date=2024-06")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAvailability(t *testing.T) {
	srv := newTestServer(t, true)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantMonths int
	}{
		{"default window", "/v1/availability", http.StatusOK, 6},
		{"explicit window", "/v1/availability?from=2024-05&to=2024-07", http.StatusOK, 3},
		{"open end", "/v1/availability?from=2024-04", http.StatusOK, 3},
		{"reversed", "/v1/availability?from=2024-07&to=2024-05", http.StatusBadRequest, 0},
		{"malformed", "/v1/availability?from=may", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(srv, tt.target)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var a domain.Availability
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
			assert.Len(t, a.Months, tt.wantMonths)
			assert.Equal(t, []string{"A"}, a.Stations)
		})
	}
}

func TestAnnual(t *testing.T) {
	rec := get(newTestServer(t, true), "/v1/annual")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Years  []int         `json:"years"`
		Months [][]*float64 `json:"months"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []int{2024}, body.Years)
	require.Len(t, body.Months, 12)
	require.NotNil(t, body.Months[5][0])
	assert.InDelta(t, 38, *body.Months[5][0], 0)
	assert.Nil(t, body.Months[0][0])
}

func TestReload(t *testing.T) {
	srv := newTestServer(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, get(srv, "/v1/annual").Code)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/reload", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.InDelta(t, 1, body["stations"], 0)
	assert.Equal(t, http.StatusOK, get(srv, "/v1/annual").Code)
}
