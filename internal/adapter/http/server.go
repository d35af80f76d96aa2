package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
	"github.com/couchcryptid/reservoir-volume-etl/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reports is the read side of the reporting pipeline served over HTTP.
type Reports interface {
	sharedobs.ReadinessChecker
	Load(ctx context.Context) (*pipeline.Snapshot, error)
	Report(refDate time.Time) (domain.Report, error)
	Availability(w domain.Window) (domain.Availability, error)
	Annual() (domain.AnnualPivot, error)
	DefaultWindow() domain.Window
}

// Server exposes health, readiness, metrics and report endpoints.
type Server struct {
	httpServer *http.Server
	reports    Reports
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /v1 report routes.
func NewServer(addr string, reports Reports, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		reports: reports,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(reports))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/synthesis", s.handleSynthesis)
	mux.HandleFunc("GET /v1/availability", s.handleAvailability)
	mux.HandleFunc("GET /v1/annual", s.handleAnnual)
	mux.HandleFunc("POST /v1/reload", s.handleReload)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleSynthesis serves the report of ?date=YYYY-MM, the current month by default.
func (s *Server) handleSynthesis(w http.ResponseWriter, r *http.Request) {
	refDate := domain.MonthStart(domain.Now())
	if q := r.URL.Query().Get("date"); q != "" {
		d, err := time.Parse("2006-01", q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM")
			return
		}
		refDate = d
	}

	report, err := s.reports.Report(refDate)
	if err != nil {
		s.writeReportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleAvailability serves the grid over ?from=YYYY-MM&to=YYYY-MM, the run
// window when both are omitted.
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	window := s.reports.DefaultWindow()
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from != "" || to != "" {
		if from == "" {
			from = window.From.Format("2006-01")
		}
		if to == "" {
			to = window.To.Format("2006-01")
		}
		wd, err := domain.ParseWindow(from, to)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		window = wd
	}

	a, err := s.reports.Availability(window)
	if err != nil {
		s.writeReportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleAnnual(w http.ResponseWriter, _ *http.Request) {
	p, err := s.reports.Annual()
	if err != nil {
		s.writeReportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleReload re-reads the chronicles and swaps the snapshot.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.reports.Load(r.Context())
	if err != nil {
		s.logger.Error("reload failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stations":  len(snap.Table.Stations),
		"months":    snap.Table.Len(),
		"loaded_at": snap.LoadedAt,
	})
}

func (s *Server) writeReportError(w http.ResponseWriter, err error) {
	if errors.Is(err, pipeline.ErrNoSnapshot) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.logger.Error("report request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
