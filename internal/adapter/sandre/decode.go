// Package sandre decodes hydrometric observation series in the SANDRE
// "hydrometrie" XML exchange format returned by the AGHyRE webservice.
package sandre

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
	"golang.org/x/net/html/charset"
)

// Message is the decoded envelope of a hydrometrie document. Element names
// are matched on their local part so any namespace version is accepted.
type Message struct {
	XMLName  xml.Name `xml:"hydrometrie"`
	Scenario Scenario `xml:"Scenario"`
	Series   []Series `xml:"Donnees>SeriesObsHydro>SerieObsHydro"`
}

// Scenario identifies the producer of the document.
type Scenario struct {
	Code      string `xml:"CodeScenario"`
	Version   string `xml:"VersionScenario"`
	CreatedAt string `xml:"DateHeureCreationFichier"`
	Emitter   string `xml:"Emetteur>CdContact"`
}

// Series is one observation series of a station.
type Series struct {
	Station      string        `xml:"CdStationHydro"`
	Site         string        `xml:"CdSiteHydro"`
	Quantity     string        `xml:"GrdSerieObsHydro"`
	Observations []observation `xml:"ObssHydro>ObsHydro"`
}

type observation struct {
	Date       string `xml:"DtObsHydro"`
	Result     string `xml:"ResObsHydro"`
	Method     string `xml:"MethObsHydro"`
	Quality    string `xml:"QualObsHydro"`
	Continuity string `xml:"ContObsHydro"`
	Status     string `xml:"StObsHydro"`
}

// dateLayouts are tried in order. Offsets are dropped, the written wall time is kept.
var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse unmarshals a hydrometrie document without interpreting its values.
func Parse(payload []byte) (Message, error) {
	var msg Message
	dec := xml.NewDecoder(bytes.NewReader(payload))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&msg); err != nil {
		return Message{}, fmt.Errorf("%w: malformed hydrometrie document: %v", domain.ErrDecode, err)
	}
	return msg, nil
}

// Decode extracts the observations of the first series of payload and tags
// them with stationID. A document without any series or observation is
// reported as domain.ErrEmptyData.
func Decode(payload []byte, stationID string) ([]domain.Observation, error) {
	msg, err := Parse(payload)
	if err != nil {
		return nil, fmt.Errorf("station %s: %w", stationID, err)
	}
	if len(msg.Series) == 0 {
		return nil, fmt.Errorf("%w: no series for station %s", domain.ErrEmptyData, stationID)
	}

	series := msg.Series[0]
	if len(series.Observations) == 0 {
		return nil, fmt.Errorf("%w: no observations for station %s", domain.ErrEmptyData, stationID)
	}

	out := make([]domain.Observation, 0, len(series.Observations))
	for i, o := range series.Observations {
		ts, err := parseDate(o.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: station %s observation %d: %v", domain.ErrDecode, stationID, i, err)
		}
		v, err := parseValue(o.Result)
		if err != nil {
			return nil, fmt.Errorf("%w: station %s observation %d: %v", domain.ErrDecode, stationID, i, err)
		}
		out = append(out, domain.Observation{
			StationID:  stationID,
			Time:       ts,
			Value:      v,
			Unit:       series.Quantity,
			Method:     o.Method,
			Quality:    o.Quality,
			Continuity: o.Continuity,
			Status:     o.Status,
		})
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", s)
}

func parseValue(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparsable value %q", s)
	}
	return v, nil
}
