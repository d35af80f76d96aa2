package sandre

import (
	"testing"
	"time"

	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoObservations = `<?xml version="1.0" encoding="UTF-8"?>
<hydrometrie xmlns="urn:fr:sandre:hydrometrie:1.1">
  <Scenario>
    <CodeScenario>hydrometrie</CodeScenario>
    <VersionScenario>1.1</VersionScenario>
    <DateHeureCreationFichier>2024-07-01T08:00:00</DateHeureCreationFichier>
    <Emetteur><CdContact>VNF</CdContact></Emetteur>
  </Scenario>
  <Donnees>
    <SeriesObsHydro>
      <SerieObsHydro>
        <CdStationHydro>1001</CdStationHydro>
        <GrdSerieObsHydro>V</GrdSerieObsHydro>
        <ObssHydro>
          <ObsHydro>
            <DtObsHydro>2024-06-01T00:00:00</DtObsHydro>
            <ResObsHydro>12.5</ResObsHydro>
            <MethObsHydro>0</MethObsHydro>
            <QualObsHydro>16</QualObsHydro>
            <ContObsHydro>0</ContObsHydro>
          </ObsHydro>
          <ObsHydro>
            <DtObsHydro>2024-06-02T06:30:00+02:00</DtObsHydro>
            <ResObsHydro>12,75</ResObsHydro>
          </ObsHydro>
        </ObssHydro>
      </SerieObsHydro>
      <SerieObsHydro>
        <ObssHydro>
          <ObsHydro>
            <DtObsHydro>2024-06-01T00:00:00</DtObsHydro>
            <ResObsHydro>999</ResObsHydro>
          </ObsHydro>
        </ObssHydro>
      </SerieObsHydro>
    </SeriesObsHydro>
  </Donnees>
</hydrometrie>`

func TestDecode_FirstSeries(t *testing.T) {
	obs, err := Decode([]byte(twoObservations), "1001")
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, domain.Observation{
		StationID:  "1001",
		Time:       time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Value:      12.5,
		Unit:       "V",
		Method:     "0",
		Quality:    "16",
		Continuity: "0",
	}, obs[0])

	assert.Equal(t, time.Date(2024, 6, 2, 6, 30, 0, 0, time.UTC), obs[1].Time, "offset dropped, wall time kept")
	assert.InDelta(t, 12.75, obs[1].Value, 1e-12)
}

func TestParse_Scenario(t *testing.T) {
	msg, err := Parse([]byte(twoObservations))
	require.NoError(t, err)

	assert.Equal(t, "hydrometrie", msg.Scenario.Code)
	assert.Equal(t, "1.1", msg.Scenario.Version)
	assert.Equal(t, "VNF", msg.Scenario.Emitter)
	assert.Len(t, msg.Series, 2)
}

func TestDecode_Latin1Document(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		"<hydrometrie><Scenario><CodeScenario>hydrom\xe9trie</CodeScenario></Scenario>" +
		"<Donnees><SeriesObsHydro><SerieObsHydro><ObssHydro><ObsHydro>" +
		"<DtObsHydro>2024-01-01 12:00:00</DtObsHydro><ResObsHydro>3</ResObsHydro>" +
		"</ObsHydro></ObssHydro></SerieObsHydro></SeriesObsHydro></Donnees></hydrometrie>"

	msg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "hydrométrie", msg.Scenario.Code)

	obs, err := Decode([]byte(doc), "7")
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), obs[0].Time)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{
			name:    "malformed",
			payload: `<hydrometrie><Donnees>`,
			want:    domain.ErrDecode,
		},
		{
			name:    "wrong root",
			payload: `<html><body>maintenance</body></html>`,
			want:    domain.ErrDecode,
		},
		{
			name:    "no series",
			payload: `<hydrometrie><Donnees><SeriesObsHydro/></Donnees></hydrometrie>`,
			want:    domain.ErrEmptyData,
		},
		{
			name:    "no observations",
			payload: `<hydrometrie><Donnees><SeriesObsHydro><SerieObsHydro><ObssHydro/></SerieObsHydro></SeriesObsHydro></Donnees></hydrometrie>`,
			want:    domain.ErrEmptyData,
		},
		{
			name: "bad date",
			payload: `<hydrometrie><Donnees><SeriesObsHydro><SerieObsHydro><ObssHydro><ObsHydro>` +
				`<DtObsHydro>01/06/2024</DtObsHydro><ResObsHydro>1</ResObsHydro>` +
				`</ObsHydro></ObssHydro></SerieObsHydro></SeriesObsHydro></Donnees></hydrometrie>`,
			want: domain.ErrDecode,
		},
		{
			name: "bad value",
			payload: `<hydrometrie><Donnees><SeriesObsHydro><SerieObsHydro><ObssHydro><ObsHydro>` +
				`<DtObsHydro>2024-06-01T00:00:00</DtObsHydro><ResObsHydro>n/a</ResObsHydro>` +
				`</ObsHydro></ObssHydro></SerieObsHydro></SeriesObsHydro></Donnees></hydrometrie>`,
			want: domain.ErrDecode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload), "42")
			require.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "42")
		})
	}
}
