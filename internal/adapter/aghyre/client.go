// Package aghyre is a client for the AGHyRE hydrological data diffusion webservice.
package aghyre

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
	"github.com/couchcryptid/reservoir-volume-etl/internal/observability"
)

const (
	// DefaultURL is the public diffusion endpoint.
	DefaultURL = "https://www.vnf.fr/aghyre/api/diffusion/donnees"
	// DefaultCodification selects station identifiers by their AGHyRE id.
	DefaultCodification = "ID_AGHYRE"

	dateLayout   = "2006-01-02T15:04:05"
	maxErrorBody = 512
)

// ErrSessionClosed is returned by Fetch after Close.
var ErrSessionClosed = errors.New("aghyre session closed")

// ClientConfig holds the endpoint and credentials of the webservice.
type ClientConfig struct {
	BaseURL            string
	Login              string
	Password           string
	Codification       string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// Client opens sessions against the webservice.
type Client struct {
	cfg     ClientConfig
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewClient creates a webservice client. Empty BaseURL and Codification fall
// back to their defaults.
func NewClient(cfg ClientConfig, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultURL
	}
	if cfg.Codification == "" {
		cfg.Codification = DefaultCodification
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{cfg: cfg, logger: logger, metrics: metrics}
}

// Session reuses one connection pool for every request of a batch.
type Session struct {
	cfg        ClientConfig
	httpClient *http.Client
	transport  *http.Transport
	logger     *slog.Logger
	metrics    *observability.Metrics
	closed     atomic.Bool
}

// Open starts a session. Callers must Close it.
func (c *Client) Open() *Session {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if c.cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // the public endpoint serves an incomplete chain
	}
	return &Session{
		cfg:        c.cfg,
		httpClient: &http.Client{Timeout: c.cfg.Timeout, Transport: transport},
		transport:  transport,
		logger:     c.logger,
		metrics:    c.metrics,
	}
}

// Close releases idle connections. Further Fetch calls fail.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.transport.CloseIdleConnections()
	return nil
}

type request struct {
	Login        string   `json:"login"`
	Password     string   `json:"password"`
	Codification string   `json:"codification"`
	Rubriques    []string `json:"rubriques"`
	DateDebut    string   `json:"dateDebut"`
	DateFin      string   `json:"dateFin"`
}

// Fetch requests the observations of one station between start and end and
// returns the raw SANDRE payload. Transport failures and non-200 responses
// wrap domain.ErrNetwork.
func (s *Session) Fetch(ctx context.Context, stationID string, start, end time.Time) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	body, err := json.Marshal(request{
		Login:        s.cfg.Login,
		Password:     s.cfg.Password,
		Codification: s.cfg.Codification,
		Rubriques:    []string{stationID},
		DateDebut:    start.Format(dateLayout),
		DateFin:      end.Format(dateLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/xml")

	started := time.Now()
	resp, err := s.httpClient.Do(req)
	s.metrics.FetchDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		s.metrics.FetchRequests.WithLabelValues("network_error").Inc()
		return nil, fmt.Errorf("%w: station %s: %v", domain.ErrNetwork, stationID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		s.metrics.FetchRequests.WithLabelValues("network_error").Inc()
		return nil, fmt.Errorf("%w: station %s: status %d: %s", domain.ErrNetwork, stationID, resp.StatusCode, bytes.TrimSpace(excerpt))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		s.metrics.FetchRequests.WithLabelValues("network_error").Inc()
		return nil, fmt.Errorf("%w: station %s: read body: %v", domain.ErrNetwork, stationID, err)
	}

	s.metrics.FetchRequests.WithLabelValues("success").Inc()
	s.logger.Debug("station fetched", "station", stationID, "bytes", len(payload))
	return payload, nil
}
