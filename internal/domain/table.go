package domain

import (
	"math"
	"sort"
	"time"
)

// Table is a wide time series table: one column per station, one row per
// instant. Rows are strictly increasing in time and missing values are NaN.
// Instants are naive calendar times stored as UTC wall clock.
type Table struct {
	Stations []string
	Dates    []time.Time
	Values   [][]float64 // [row][station]
}

// NewTable allocates a table with every value missing.
func NewTable(stations []string, dates []time.Time) Table {
	values := make([][]float64, len(dates))
	for i := range values {
		row := make([]float64, len(stations))
		for j := range row {
			row[j] = math.NaN()
		}
		values[i] = row
	}
	return Table{
		Stations: append([]string(nil), stations...),
		Dates:    append([]time.Time(nil), dates...),
		Values:   values,
	}
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Dates) }

// Column returns the index of a station column, or -1.
func (t Table) Column(stationID string) int {
	for i, s := range t.Stations {
		if s == stationID {
			return i
		}
	}
	return -1
}

// Row returns the index of the row at exactly date, or -1.
func (t Table) Row(date time.Time) int {
	i := sort.Search(len(t.Dates), func(i int) bool { return !t.Dates[i].Before(date) })
	if i < len(t.Dates) && t.Dates[i].Equal(date) {
		return i
	}
	return -1
}

// Value returns the value of a station at date and whether it is present.
func (t Table) Value(date time.Time, stationID string) (float64, bool) {
	col := t.Column(stationID)
	row := t.Row(date)
	if col < 0 || row < 0 {
		return math.NaN(), false
	}
	v := t.Values[row][col]
	return v, !math.IsNaN(v)
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := Table{
		Stations: append([]string(nil), t.Stations...),
		Dates:    append([]time.Time(nil), t.Dates...),
		Values:   make([][]float64, len(t.Values)),
	}
	for i, row := range t.Values {
		out.Values[i] = append([]float64(nil), row...)
	}
	return out
}

// TableFromSeries builds a table from per-station observations, one column per
// id in the given order. Readings sharing the same instant are averaged.
func TableFromSeries(ids []string, series map[string][]Observation) Table {
	type acc struct{ sum, n float64 }
	cells := make(map[int64][]acc)
	for col, id := range ids {
		for _, obs := range series[id] {
			key := obs.Time.UTC().UnixNano()
			row, ok := cells[key]
			if !ok {
				row = make([]acc, len(ids))
				cells[key] = row
			}
			if math.IsNaN(obs.Value) {
				continue
			}
			row[col].sum += obs.Value
			row[col].n++
		}
	}

	keys := make([]int64, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	dates := make([]time.Time, len(keys))
	for i, k := range keys {
		dates[i] = time.Unix(0, k).UTC()
	}

	t := NewTable(ids, dates)
	for i, k := range keys {
		for col, a := range cells[k] {
			if a.n > 0 {
				t.Values[i][col] = a.sum / a.n
			}
		}
	}
	return t
}

// MonthStart truncates t to the first instant of its calendar month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DayStart truncates t to midnight of its calendar day.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsMissing reports whether v marks a missing value.
func IsMissing(v float64) bool { return math.IsNaN(v) }
