// Package chronicle persists station time series tables as ';'-separated
// "chronique" files, one file per catalog.
package chronicle

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
)

const (
	dateColumn = "DtObsHydro"
	dateLayout = "2006-01-02T15:04:05.999999999" // fraction omitted for whole seconds
	prefix     = "chronique_"
)

// readLayouts also accept files written by spreadsheet tools.
var readLayouts = []string{dateLayout, "2006-01-02 15:04:05", "2006-01-02"}

// ChronicleName derives the chronicle file name from a catalog path.
func ChronicleName(catalogPath string) string {
	return prefix + filepath.Base(catalogPath)
}

// Store reads and writes chronicle files under a directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the location of the named chronicle.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Write replaces the named chronicle with t. The file is written to a
// temporary name first so readers never see a partial file.
func (s *Store) Write(name string, t domain.Table) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create results directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create chronicle: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if err := encode(tmp, t); err != nil {
		tmp.Close()
		return fmt.Errorf("write chronicle %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close chronicle %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(name)); err != nil {
		return fmt.Errorf("replace chronicle %s: %w", name, err)
	}
	return nil
}

// WriteCatalog writes the chronicle of the catalog file at catalogPath.
func (s *Store) WriteCatalog(catalogPath string, t domain.Table) error {
	return s.Write(ChronicleName(catalogPath), t)
}

// ReadCatalog loads the chronicle of the catalog file at catalogPath.
func (s *Store) ReadCatalog(catalogPath string) (domain.Table, error) {
	return s.Read(ChronicleName(catalogPath))
}

// Read loads the named chronicle.
func (s *Store) Read(name string) (domain.Table, error) {
	f, err := os.Open(s.Path(name))
	if err != nil {
		return domain.Table{}, fmt.Errorf("open chronicle: %w", err)
	}
	defer f.Close()

	t, err := decode(f)
	if err != nil {
		return domain.Table{}, fmt.Errorf("read chronicle %s: %w", name, err)
	}
	return t, nil
}

func encode(w io.Writer, t domain.Table) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(append([]string{dateColumn}, t.Stations...)); err != nil {
		return err
	}
	rec := make([]string, len(t.Stations)+1)
	for i, d := range t.Dates {
		rec[0] = d.Format(dateLayout)
		for j, v := range t.Values[i] {
			if math.IsNaN(v) {
				rec[j+1] = ""
			} else {
				rec[j+1] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func decode(r io.Reader) (domain.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return domain.Table{}, fmt.Errorf("%w: empty chronicle", domain.ErrDecode)
	}
	if err != nil {
		return domain.Table{}, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	if len(header) == 0 {
		return domain.Table{}, fmt.Errorf("%w: missing header", domain.ErrDecode)
	}

	stations := header[1:]
	var dates []time.Time
	var rows [][]float64
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Table{}, fmt.Errorf("%w: line %d: %v", domain.ErrDecode, line, err)
		}
		d, err := parseDate(rec[0])
		if err != nil {
			return domain.Table{}, fmt.Errorf("%w: line %d: %v", domain.ErrDecode, line, err)
		}
		if n := len(dates); n > 0 && !d.After(dates[n-1]) {
			return domain.Table{}, fmt.Errorf("%w: line %d: dates not strictly increasing", domain.ErrDecode, line)
		}
		row := make([]float64, len(stations))
		for j, field := range rec[1:] {
			field = strings.TrimSpace(field)
			if field == "" {
				row[j] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return domain.Table{}, fmt.Errorf("%w: line %d column %s: %v", domain.ErrDecode, line, stations[j], err)
			}
			row[j] = v
		}
		dates = append(dates, d)
		rows = append(rows, row)
	}

	return domain.Table{Stations: append([]string(nil), stations...), Dates: dates, Values: rows}, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range readLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", s)
}
