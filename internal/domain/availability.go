package domain

import (
	"fmt"
	"math"
	"time"
)

// Window bounds an availability grid, both months included.
type Window struct {
	From time.Time
	To   time.Time
}

// ParseWindow reads a "YYYY-MM" pair.
func ParseWindow(from, to string) (Window, error) {
	f, err := time.Parse("2006-01", from)
	if err != nil {
		return Window{}, fmt.Errorf("%w: invalid window start %q", ErrConfig, from)
	}
	t, err := time.Parse("2006-01", to)
	if err != nil {
		return Window{}, fmt.Errorf("%w: invalid window end %q", ErrConfig, to)
	}
	if t.Before(f) {
		return Window{}, fmt.Errorf("%w: window end %s before start %s", ErrConfig, to, from)
	}
	return Window{From: f, To: t}, nil
}

// Availability is a station x month presence grid.
type Availability struct {
	Stations []string    `json:"stations"`
	Months   []time.Time `json:"months"`
	Present  [][]bool    `json:"present"` // [month][station]
}

// Coverage returns the share of present cells of a station, or 0 when the
// station is not in the grid.
func (a Availability) Coverage(stationID string) float64 {
	col := -1
	for i, s := range a.Stations {
		if s == stationID {
			col = i
			break
		}
	}
	if col < 0 || len(a.Months) == 0 {
		return 0
	}
	var n int
	for _, row := range a.Present {
		if row[col] {
			n++
		}
	}
	return float64(n) / float64(len(a.Months))
}

// BuildAvailability reports, for every month of the window and every station
// of the table, whether a value exists. The table is not modified.
func BuildAvailability(t Table, w Window) Availability {
	a := Availability{Stations: append([]string(nil), t.Stations...)}
	last := MonthStart(w.To)
	for m := MonthStart(w.From); !m.After(last); m = m.AddDate(0, 1, 0) {
		present := make([]bool, len(t.Stations))
		if row := t.Row(m); row >= 0 {
			for j, v := range t.Values[row] {
				present[j] = !math.IsNaN(v)
			}
		}
		a.Months = append(a.Months, m)
		a.Present = append(a.Present, present)
	}
	return a
}
