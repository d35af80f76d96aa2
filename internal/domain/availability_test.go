package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("2015-01", "2024-12")
	require.NoError(t, err)
	assert.Equal(t, date(2015, 1, 1), w.From)
	assert.Equal(t, date(2024, 12, 1), w.To)

	_, err = ParseWindow("2015", "2024-12")
	require.ErrorIs(t, err, ErrConfig)

	_, err = ParseWindow("2024-12", "2015-01")
	require.ErrorIs(t, err, ErrConfig)
}

func TestBuildAvailability_StationStartingLate(t *testing.T) {
	var dates []time.Time
	for m := date(2015, 1, 1); !m.After(date(2024, 12, 1)); m = m.AddDate(0, 1, 0) {
		dates = append(dates, m)
	}
	tbl := NewTable([]string{"early", "late"}, dates)
	for i, d := range dates {
		tbl.Values[i][0] = 10
		if d.Year() >= 2019 {
			tbl.Values[i][1] = 20
		}
	}
	w, err := ParseWindow("2015-01", "2024-12")
	require.NoError(t, err)

	a := BuildAvailability(tbl, w)

	require.Len(t, a.Months, 120)
	assert.Equal(t, []string{"early", "late"}, a.Stations)
	for i, m := range a.Months {
		assert.True(t, a.Present[i][0], "early at %s", m.Format("2006-01"))
		assert.Equal(t, m.Year() >= 2019, a.Present[i][1], "late at %s", m.Format("2006-01"))
	}
	assert.InDelta(t, 1.0, a.Coverage("early"), 1e-9)
	assert.InDelta(t, 0.6, a.Coverage("late"), 1e-9)
	assert.InDelta(t, 0.0, a.Coverage("unknown"), 0)
}

func TestBuildAvailability_WindowBeyondTable(t *testing.T) {
	tbl := Table{
		Stations: []string{"A"},
		Dates:    []time.Time{date(2024, 1, 1)},
		Values:   [][]float64{{nan}},
	}
	w := Window{From: date(2023, 12, 1), To: date(2024, 2, 1)}

	a := BuildAvailability(tbl, w)

	assert.Equal(t, []time.Time{date(2023, 12, 1), date(2024, 1, 1), date(2024, 2, 1)}, a.Months)
	assert.Equal(t, [][]bool{{false}, {false}, {false}}, a.Present)
	assert.True(t, IsMissing(tbl.Values[0][0]), "input table untouched")
}
