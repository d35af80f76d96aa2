package domain

import "time"

// Station is the reference metadata of one reservoir.
type Station struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Waterway string  `json:"waterway,omitempty"`
	Region   string  `json:"region,omitempty"`
	Capacity float64 `json:"capacity_mm3"` // maximum usable capacity, Mm3
}

// Catalog indexes stations by identifier. It is loaded once per run and never
// mutated afterwards.
type Catalog map[string]Station

// NewCatalog indexes stations by ID. Later duplicates replace earlier ones.
func NewCatalog(stations []Station) Catalog {
	c := make(Catalog, len(stations))
	for _, s := range stations {
		c[s.ID] = s
	}
	return c
}

// Rubrique is one entry of a catalog file: a webservice feed identifier and
// its display name.
type Rubrique struct {
	ID   string
	Name string
}

// Observation is one decoded reading of a station feed.
type Observation struct {
	StationID string
	Time      time.Time
	Value     float64
	Unit      string

	// SANDRE qualifiers, kept for traceability only.
	Method     string
	Quality    string
	Continuity string
	Status     string
}
