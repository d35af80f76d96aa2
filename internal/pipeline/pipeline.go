// Package pipeline orchestrates acquisition runs and report building on top
// of the pure transforms of package domain.
package pipeline

import (
	"context"
	"time"

	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
)

// Session fetches raw payloads from the webservice. One session serves a
// whole acquisition run.
type Session interface {
	Fetch(ctx context.Context, stationID string, start, end time.Time) ([]byte, error)
	Close() error
}

// OpenFunc starts a new session.
type OpenFunc func() Session

// DecodeFunc turns a raw payload into observations of one station.
type DecodeFunc func(payload []byte, stationID string) ([]domain.Observation, error)

// CatalogReader lists the stations of a rubrique file.
type CatalogReader func(path string) ([]domain.Rubrique, error)

// ChronicleWriter persists the table fetched for a catalog file.
type ChronicleWriter interface {
	WriteCatalog(catalogPath string, t domain.Table) error
}

// ChronicleReader loads the table previously written for a catalog file.
type ChronicleReader interface {
	ReadCatalog(catalogPath string) (domain.Table, error)
}

// ReferenceReader loads the reservoir reference metadata.
type ReferenceReader func() ([]domain.Station, error)
