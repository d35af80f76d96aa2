// Package catalog reads the station lists driving an acquisition run and the
// reference spreadsheet describing each reservoir.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
)

// ReadRubriques reads a ';'-separated rubrique file: a header row, the station
// id in the first column and its name in the "nom" column (second column when
// absent). Duplicate ids are rejected.
func ReadRubriques(path string) ([]domain.Rubrique, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open rubrique file: %v", domain.ErrConfig, err)
	}
	defer f.Close()

	rubriques, err := parseRubriques(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rubriques, nil
}

func parseRubriques(r io.Reader) ([]domain.Rubrique, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty rubrique file", domain.ErrConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", domain.ErrConfig, err)
	}

	nameCol := 1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "nom") {
			nameCol = i
		}
	}

	var out []domain.Rubrique
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrConfig, line, err)
		}
		id := NormalizeID(rec[0])
		if id == "" {
			continue
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: line %d: duplicate station %s", domain.ErrConfig, line, id)
		}
		seen[id] = true

		rub := domain.Rubrique{ID: id}
		if nameCol < len(rec) {
			rub.Name = strings.TrimSpace(rec[nameCol])
		}
		out = append(out, rub)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no station listed", domain.ErrConfig)
	}
	return out, nil
}

// NormalizeID renders spreadsheet-style numeric identifiers as integers
// ("1234.0" becomes "1234"). Other identifiers are only trimmed.
func NormalizeID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if _, err := strconv.Atoi(s); err == nil {
		return s
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

// IDs returns the station identifiers of rubriques in file order.
func IDs(rubriques []domain.Rubrique) []string {
	ids := make([]string, len(rubriques))
	for i, r := range rubriques {
		ids[i] = r.ID
	}
	return ids
}
