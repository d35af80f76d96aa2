package domain

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

const (
	// ReferenceYears is the length of the rolling reference window.
	ReferenceYears = 10
	// ReferenceMinYears is the number of years that must be present for the
	// reference to be defined (one missing year tolerated).
	ReferenceMinYears = 9

	lowStatusRatio = 0.8
	trendThreshold = 0.03
)

// Status classifies the current volume against the rolling reference.
type Status string

const (
	StatusUndefined Status = ""
	StatusLow       Status = "low"
	StatusMedium    Status = "medium"
	StatusHigh      Status = "high"
)

// Trend classifies the month-over-month fill ratio delta.
type Trend string

const (
	TrendUndefined Trend = ""
	TrendDown      Trend = "down"
	TrendStable    Trend = "stable"
	TrendUp        Trend = "up"
)

// SynthesisRow is the per-station snapshot at a reference month. Nil
// indicators could not be computed.
type SynthesisRow struct {
	StationID         string   `json:"station_id"`
	Name              string   `json:"name,omitempty"`
	Waterway          string   `json:"waterway,omitempty"`
	Region            string   `json:"region,omitempty"`
	Capacity          *float64 `json:"capacity_mm3"`
	Reference         *float64 `json:"reference_mm3"`
	Volume            *float64 `json:"volume_mm3"`
	FillRatio         *float64 `json:"fill_ratio"`
	PreviousFillRatio *float64 `json:"previous_fill_ratio"`
	Trend             *float64 `json:"trend"`
	TrendClass        Trend    `json:"trend_class,omitempty"`
	Status            Status   `json:"status,omitempty"`
}

// Report gathers the synthesis rows of one reference month.
type Report struct {
	ReferenceDate time.Time      `json:"reference_date"`
	Rows          []SynthesisRow `json:"rows"`
}

// ClassifyStatus compares a volume with its reference. Half-open intervals:
// low below 80% of the reference, medium up to the reference, high from it.
func ClassifyStatus(volume, reference *float64) Status {
	if volume == nil || reference == nil {
		return StatusUndefined
	}
	v, ref := *volume, *reference
	switch {
	case v < lowStatusRatio*ref:
		return StatusLow
	case v < ref:
		return StatusMedium
	default:
		return StatusHigh
	}
}

// ClassifyTrend buckets a fill ratio delta: down at or below -0.03, up at or
// above 0.03, stable in between.
func ClassifyTrend(delta *float64) Trend {
	if delta == nil {
		return TrendUndefined
	}
	switch {
	case *delta <= -trendThreshold:
		return TrendDown
	case *delta < trendThreshold:
		return TrendStable
	default:
		return TrendUp
	}
}

// FillRatio divides a volume by a capacity. Undefined without a volume or with
// a non-positive capacity.
func FillRatio(volume *float64, capacity float64) *float64 {
	if volume == nil || capacity <= 0 || math.IsNaN(capacity) {
		return nil
	}
	return ptr(*volume / capacity)
}

// RollingReference averages the value of the reference date's calendar month
// over the ReferenceYears years ending with the reference year. It is nil when
// fewer than ReferenceMinYears of them are present.
func RollingReference(t Table, stationID string, refDate time.Time) *float64 {
	col := t.Column(stationID)
	if col < 0 {
		return nil
	}
	refDate = MonthStart(refDate)

	var sum float64
	var n int
	for k := 0; k < ReferenceYears; k++ {
		row := t.Row(refDate.AddDate(-k, 0, 0))
		if row < 0 {
			continue
		}
		if v := t.Values[row][col]; !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n < ReferenceMinYears {
		return nil
	}
	return ptr(sum / float64(n))
}

// Synthesize computes one row per station of the canonical table at the month
// of refDate. Rows are ordered by region, waterway, then table column order.
// Missing inputs leave the affected indicators nil without failing the row.
func Synthesize(t Table, catalog Catalog, refDate time.Time) Report {
	refDate = MonthStart(refDate)
	prevDate := refDate.AddDate(0, -1, 0)

	rows := make([]SynthesisRow, 0, len(t.Stations))
	for _, id := range t.Stations {
		st, known := catalog[id]

		row := SynthesisRow{
			StationID: id,
			Name:      st.Name,
			Waterway:  st.Waterway,
			Region:    st.Region,
		}
		if known {
			row.Capacity = ptr(st.Capacity)
		}

		row.Volume = valueAt(t, refDate, id)
		row.Reference = RollingReference(t, id, refDate)
		row.FillRatio = FillRatio(row.Volume, st.Capacity)
		row.PreviousFillRatio = FillRatio(valueAt(t, prevDate, id), st.Capacity)
		if row.FillRatio != nil && row.PreviousFillRatio != nil {
			row.Trend = ptr(*row.FillRatio - *row.PreviousFillRatio)
		}
		row.TrendClass = ClassifyTrend(row.Trend)
		row.Status = ClassifyStatus(row.Volume, row.Reference)

		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Region != rows[j].Region {
			return rows[i].Region < rows[j].Region
		}
		return rows[i].Waterway < rows[j].Waterway
	})

	return Report{ReferenceDate: refDate, Rows: rows}
}

// AnnualPivot holds the total volume of all stations per calendar month
// (index 0 = January) and year.
type AnnualPivot struct {
	Years  []int         `json:"years"`
	Values [12][]float64 `json:"-"`
}

// Value returns the total for a month and year, NaN when outside the table.
func (p AnnualPivot) Value(month time.Month, year int) float64 {
	for i, y := range p.Years {
		if y == year {
			return p.Values[month-1][i]
		}
	}
	return math.NaN()
}

// MarshalJSON encodes the totals month by month, January first, with null for
// months outside the table.
func (p AnnualPivot) MarshalJSON() ([]byte, error) {
	months := make([][]*float64, len(p.Values))
	for m, totals := range p.Values {
		months[m] = make([]*float64, len(totals))
		for i, v := range totals {
			if !math.IsNaN(v) {
				months[m][i] = ptr(v)
			}
		}
	}
	return json.Marshal(struct {
		Years  []int         `json:"years"`
		Months [][]*float64 `json:"months"`
	}{Years: p.Years, Months: months})
}

// BuildAnnualPivot sums every station per row, skipping missing values (a row
// without any value sums to 0), then reshapes the totals into month x year.
func BuildAnnualPivot(t Table) AnnualPivot {
	var p AnnualPivot
	yearIndex := make(map[int]int)
	for _, d := range t.Dates {
		if _, ok := yearIndex[d.Year()]; !ok {
			yearIndex[d.Year()] = len(p.Years)
			p.Years = append(p.Years, d.Year())
		}
	}
	for m := range p.Values {
		p.Values[m] = make([]float64, len(p.Years))
		for i := range p.Values[m] {
			p.Values[m][i] = math.NaN()
		}
	}

	for i, d := range t.Dates {
		var total float64
		for _, v := range t.Values[i] {
			if !math.IsNaN(v) {
				total += v
			}
		}
		p.Values[d.Month()-1][yearIndex[d.Year()]] = total
	}
	return p
}

func valueAt(t Table, date time.Time, stationID string) *float64 {
	v, ok := t.Value(date, stationID)
	if !ok {
		return nil
	}
	return ptr(v)
}

func ptr(v float64) *float64 { return &v }
