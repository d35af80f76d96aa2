// Package sqlite exports the canonical table, the synthesis rows and the
// availability grid into a SQLite database for downstream tools.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"

	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const schema = `
CREATE TABLE IF NOT EXISTS canonical_volume (
	month      TEXT NOT NULL,
	station_id TEXT NOT NULL,
	volume_mm3 REAL NOT NULL,
	PRIMARY KEY (month, station_id)
);

CREATE TABLE IF NOT EXISTS synthesis (
	reference_date      TEXT NOT NULL,
	station_id          TEXT NOT NULL,
	name                TEXT NOT NULL DEFAULT '',
	waterway            TEXT NOT NULL DEFAULT '',
	region              TEXT NOT NULL DEFAULT '',
	capacity_mm3        REAL,
	reference_mm3       REAL,
	volume_mm3          REAL,
	fill_ratio          REAL,
	previous_fill_ratio REAL,
	trend               REAL,
	trend_class         TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (reference_date, station_id)
);

CREATE TABLE IF NOT EXISTS availability (
	month      TEXT NOT NULL,
	station_id TEXT NOT NULL,
	present    INTEGER NOT NULL,
	PRIMARY KEY (month, station_id)
);
`

const monthLayout = "2006-01"

// Dataset is what one export writes.
type Dataset struct {
	Table        domain.Table
	Report       domain.Report
	Availability domain.Availability
}

// Exporter writes datasets into a SQLite database.
type Exporter struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path with WAL journaling.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

// New creates an Exporter over db.
func New(db *sql.DB, logger *slog.Logger) *Exporter {
	return &Exporter{db: db, logger: logger}
}

// Migrate creates the export tables when missing.
func (e *Exporter) Migrate(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Export replaces the canonical volumes and the availability grid, and the
// synthesis rows of the report's reference month, in a single transaction.
// Synthesis rows of other months are kept.
func (e *Exporter) Export(ctx context.Context, d Dataset) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin export: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := writeVolumes(ctx, tx, d.Table); err != nil {
		return err
	}
	if err := writeSynthesis(ctx, tx, d.Report); err != nil {
		return err
	}
	if err := writeAvailability(ctx, tx, d.Availability); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}
	e.logger.Info("sqlite export complete",
		"stations", len(d.Table.Stations),
		"months", d.Table.Len(),
		"reference_date", d.Report.ReferenceDate.Format(monthLayout),
	)
	return nil
}

func writeVolumes(ctx context.Context, tx *sql.Tx, t domain.Table) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM canonical_volume`); err != nil {
		return fmt.Errorf("clear canonical_volume: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO canonical_volume (month, station_id, volume_mm3) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare canonical_volume: %w", err)
	}
	defer stmt.Close()

	for i, d := range t.Dates {
		month := d.Format(monthLayout)
		for j, id := range t.Stations {
			v := t.Values[i][j]
			if math.IsNaN(v) {
				continue
			}
			if _, err := stmt.ExecContext(ctx, month, id, v); err != nil {
				return fmt.Errorf("insert volume %s %s: %w", month, id, err)
			}
		}
	}
	return nil
}

func writeSynthesis(ctx context.Context, tx *sql.Tx, report domain.Report) error {
	refDate := report.ReferenceDate.Format(monthLayout)
	if _, err := tx.ExecContext(ctx, `DELETE FROM synthesis WHERE reference_date = ?`, refDate); err != nil {
		return fmt.Errorf("clear synthesis %s: %w", refDate, err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO synthesis (reference_date, station_id, name, waterway, region, capacity_mm3, reference_mm3,
			volume_mm3, fill_ratio, previous_fill_ratio, trend, trend_class, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare synthesis: %w", err)
	}
	defer stmt.Close()

	for _, r := range report.Rows {
		if _, err := stmt.ExecContext(ctx, refDate, r.StationID, r.Name, r.Waterway, r.Region,
			nullFloat(r.Capacity), nullFloat(r.Reference), nullFloat(r.Volume), nullFloat(r.FillRatio),
			nullFloat(r.PreviousFillRatio), nullFloat(r.Trend), string(r.TrendClass), string(r.Status),
		); err != nil {
			return fmt.Errorf("insert synthesis %s: %w", r.StationID, err)
		}
	}
	return nil
}

func writeAvailability(ctx context.Context, tx *sql.Tx, a domain.Availability) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM availability`); err != nil {
		return fmt.Errorf("clear availability: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO availability (month, station_id, present) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare availability: %w", err)
	}
	defer stmt.Close()

	for i, m := range a.Months {
		month := m.Format(monthLayout)
		for j, id := range a.Stations {
			if _, err := stmt.ExecContext(ctx, month, id, a.Present[i][j]); err != nil {
				return fmt.Errorf("insert availability %s %s: %w", month, id, err)
			}
		}
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
