package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Layout locates the reference table inside the workbook.
type Layout struct {
	Sheet     string
	HeaderRow int // 1-based

	IDColumn       string
	NameColumn     string
	CapacityColumn string
	WaterwayColumn string
	RegionColumn   string
}

// DefaultLayout matches the reservoir characteristics workbook.
func DefaultLayout() Layout {
	return Layout{
		Sheet:          "Réservoirs",
		HeaderRow:      4,
		IDColumn:       "ID Aghyre - VMJ utile",
		NameColumn:     "Barrages réservoirs",
		CapacityColumn: "Capacité maximale utile (en Mm3)",
		WaterwayColumn: "Voies d'eau",
		RegionColumn:   "DT",
	}
}

// withDefaults fills the zero fields of l from DefaultLayout.
func (l Layout) withDefaults() Layout {
	d := DefaultLayout()
	if l.Sheet == "" {
		l.Sheet = d.Sheet
	}
	if l.HeaderRow <= 0 {
		l.HeaderRow = d.HeaderRow
	}
	if l.IDColumn == "" {
		l.IDColumn = d.IDColumn
	}
	if l.NameColumn == "" {
		l.NameColumn = d.NameColumn
	}
	if l.CapacityColumn == "" {
		l.CapacityColumn = d.CapacityColumn
	}
	if l.WaterwayColumn == "" {
		l.WaterwayColumn = d.WaterwayColumn
	}
	if l.RegionColumn == "" {
		l.RegionColumn = d.RegionColumn
	}
	return l
}

// ReadReference loads the reservoir reference table. Rows without an id are
// skipped; waterway and region cells left blank by merged ranges inherit the
// value above them.
func ReadReference(path string, layout Layout) ([]domain.Station, error) {
	layout = layout.withDefaults()

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open reference workbook: %v", domain.ErrConfig, err)
	}
	defer f.Close()

	rows, err := f.GetRows(layout.Sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", domain.ErrConfig, layout.Sheet, err)
	}
	stations, err := parseReference(rows, layout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return stations, nil
}

func parseReference(rows [][]string, layout Layout) ([]domain.Station, error) {
	if len(rows) < layout.HeaderRow {
		return nil, fmt.Errorf("%w: sheet %q has no header row %d", domain.ErrConfig, layout.Sheet, layout.HeaderRow)
	}

	header := rows[layout.HeaderRow-1]
	col := func(name string) (int, error) {
		for i, h := range header {
			if strings.TrimSpace(h) == name {
				return i, nil
			}
		}
		return -1, fmt.Errorf("%w: missing column %q in sheet %q", domain.ErrConfig, name, layout.Sheet)
	}

	var idx [5]int
	for i, name := range []string{layout.IDColumn, layout.NameColumn, layout.CapacityColumn, layout.WaterwayColumn, layout.RegionColumn} {
		c, err := col(name)
		if err != nil {
			return nil, err
		}
		idx[i] = c
	}
	idCol, nameCol, capCol, wayCol, regionCol := idx[0], idx[1], idx[2], idx[3], idx[4]

	var out []domain.Station
	seen := make(map[string]bool)
	var waterway, region string
	for n, row := range rows[layout.HeaderRow:] {
		line := layout.HeaderRow + 1 + n
		if v := cell(row, wayCol); v != "" {
			waterway = v
		}
		if v := cell(row, regionCol); v != "" {
			region = v
		}

		id := NormalizeID(cell(row, idCol))
		if id == "" {
			continue
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: row %d: duplicate station %s", domain.ErrConfig, line, id)
		}
		seen[id] = true

		capacity, err := parseCapacity(cell(row, capCol))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: station %s: %v", domain.ErrConfig, line, id, err)
		}
		out = append(out, domain.Station{
			ID:       id,
			Name:     cell(row, nameCol),
			Waterway: waterway,
			Region:   region,
			Capacity: capacity,
		})
	}
	return out, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// parseCapacity accepts '.' or ',' decimals. A blank cell is 0.
func parseCapacity(s string) (float64, error) {
	s = strings.ReplaceAll(strings.ReplaceAll(s, " ", ""), ",", ".")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid capacity %q", s)
	}
	return v, nil
}
