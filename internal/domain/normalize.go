package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Step is a resampling frequency code, as written in run configurations.
type Step string

const (
	StepNone       Step = "-1" // keep native instants
	StepHour       Step = "H"
	StepDay        Step = "D"
	StepMonthStart Step = "MS"
)

// ParseStep validates a frequency code.
func ParseStep(s string) (Step, error) {
	switch Step(s) {
	case StepNone, StepHour, StepDay, StepMonthStart:
		return Step(s), nil
	default:
		return "", fmt.Errorf("%w: unknown resample step %q (want -1, H, D or MS)", ErrConfig, s)
	}
}

// floor returns the start of the bin containing t.
func (s Step) floor(t time.Time) time.Time {
	switch s {
	case StepHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case StepDay:
		return DayStart(t)
	case StepMonthStart:
		return MonthStart(t)
	default:
		return t
	}
}

// next returns the start of the bin following the bin starting at t.
func (s Step) next(t time.Time) time.Time {
	switch s {
	case StepHour:
		return t.Add(time.Hour)
	case StepDay:
		return t.AddDate(0, 0, 1)
	default:
		return t.AddDate(0, 1, 0)
	}
}

// Source is one unit-homogeneous table and the factor converting it to Mm3.
type Source struct {
	Name  string
	Table Table
	Scale float64
}

// Rescale multiplies every value by factor. Missing values stay missing.
func Rescale(t Table, factor float64) Table {
	out := t.Clone()
	for _, row := range out.Values {
		for j := range row {
			row[j] *= factor
		}
	}
	return out
}

// OuterJoin merges tables on their instants. Columns keep the order of the
// tables then of their stations. A station may appear in only one table.
func OuterJoin(tables ...Table) (Table, error) {
	var stations []string
	seen := make(map[string]bool)
	dateSet := make(map[int64]time.Time)
	for _, t := range tables {
		for _, s := range t.Stations {
			if seen[s] {
				return Table{}, fmt.Errorf("station %s present in more than one source", s)
			}
			seen[s] = true
			stations = append(stations, s)
		}
		for _, d := range t.Dates {
			dateSet[d.UnixNano()] = d
		}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for _, d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := NewTable(stations, dates)
	offset := 0
	for _, t := range tables {
		for i, d := range t.Dates {
			row := out.Row(d)
			copy(out.Values[row][offset:offset+len(t.Stations)], t.Values[i])
		}
		offset += len(t.Stations)
	}
	return out, nil
}

// DropEmptyRows removes the rows where every station is missing.
func DropEmptyRows(t Table) Table {
	out := Table{Stations: append([]string(nil), t.Stations...)}
	for i, row := range t.Values {
		if rowHasValue(row) {
			out.Dates = append(out.Dates, t.Dates[i])
			out.Values = append(out.Values, append([]float64(nil), row...))
		}
	}
	return out
}

func rowHasValue(row []float64) bool {
	for _, v := range row {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}

// ResampleMean averages values into consecutive bins of the given step, from
// the bin of the first row to the bin of the last row. Bins without any value
// are kept as missing rows. StepNone returns a copy of the table.
func ResampleMean(t Table, step Step) Table {
	if step == StepNone {
		return t.Clone()
	}
	return resample(t, step, meanOf)
}

// MonthlySnapshots keeps, for every calendar month between the first and the
// last row, the first non-missing value of each station within that month.
func MonthlySnapshots(t Table) Table {
	return resample(t, StepMonthStart, firstOf)
}

type reducer func(values []float64) float64

func meanOf(values []float64) float64 {
	var sum, n float64
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / n
}

func firstOf(values []float64) float64 {
	for _, v := range values {
		if !math.IsNaN(v) {
			return v
		}
	}
	return math.NaN()
}

// resample groups consecutive rows by bin and reduces each station column.
// Rows are sorted, so each bin is a contiguous run of rows.
func resample(t Table, step Step, reduce reducer) Table {
	if t.Len() == 0 {
		return Table{Stations: append([]string(nil), t.Stations...)}
	}

	var bins []time.Time
	last := step.floor(t.Dates[len(t.Dates)-1])
	for b := step.floor(t.Dates[0]); !b.After(last); b = step.next(b) {
		bins = append(bins, b)
	}

	out := NewTable(t.Stations, bins)
	column := make([]float64, 0, 8)
	row := 0
	for i, b := range bins {
		end := step.next(b)
		start := row
		for row < t.Len() && t.Dates[row].Before(end) {
			row++
		}
		if start == row {
			continue
		}
		for j := range t.Stations {
			column = column[:0]
			for r := start; r < row; r++ {
				column = append(column, t.Values[r][j])
			}
			out.Values[i][j] = reduce(column)
		}
	}
	return out
}

// Normalize reconciles unit-homogeneous sources into the canonical monthly
// table: rescale to Mm3, outer join, drop empty rows, daily mean, then the
// first daily value of each month.
func Normalize(sources []Source) (Table, error) {
	scaled := make([]Table, len(sources))
	for i, s := range sources {
		scaled[i] = Rescale(s.Table, s.Scale)
	}

	joined, err := OuterJoin(scaled...)
	if err != nil {
		return Table{}, fmt.Errorf("join sources: %w", err)
	}

	daily := ResampleMean(DropEmptyRows(joined), StepDay)
	return MonthlySnapshots(daily), nil
}
