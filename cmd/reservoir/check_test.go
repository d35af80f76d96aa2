package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/reservoir-volume-etl/internal/adapter/chronicle"
	"github.com/couchcryptid/reservoir-volume-etl/internal/config"
	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func testRun(t *testing.T, catalogs map[string]string) *config.Run {
	t.Helper()
	dir := t.TempDir()
	run := &config.Run{Results: filepath.Join(dir, "chroniques")}
	for _, name := range []string{"mm3.csv", "m3.csv"} {
		content, ok := catalogs[name]
		if !ok {
			continue
		}
		path := filepath.Join(dir, name)
		writeFile(t, path, content)
		run.Catalogs = append(run.Catalogs, config.CatalogSource{Path: path, Step: domain.StepDay, Scale: 1})
	}
	return run
}

func TestCheck_Passes(t *testing.T) {
	run := testRun(t, map[string]string{
		"mm3.csv": "id;nom\n1001;Panthier\n",
		"m3.csv":  "id;nom\n2001;Grosbois\n",
	})

	var out bytes.Buffer
	assert.True(t, check(&out, run, false))
	assert.Contains(t, out.String(), "Catalogs")
	assert.NotContains(t, out.String(), "FAIL")
}

func TestCheck_StationInTwoCatalogs(t *testing.T) {
	run := testRun(t, map[string]string{
		"mm3.csv": "id;nom\n1001;Panthier\n",
		"m3.csv":  "id;nom\n1001.0;Panthier\n",
	})

	var out bytes.Buffer
	assert.False(t, check(&out, run, false))
	assert.Contains(t, out.String(), "station 1001 listed in")
}

func TestCheck_MissingCatalogFile(t *testing.T) {
	run := testRun(t, map[string]string{"mm3.csv": "id;nom\n1001;Panthier\n"})
	run.Catalogs = append(run.Catalogs, config.CatalogSource{Path: filepath.Join(t.TempDir(), "absent.csv")})

	var out bytes.Buffer
	assert.False(t, check(&out, run, false))
	assert.Contains(t, out.String(), "Catalogs")
	assert.Contains(t, out.String(), "FAIL (1 errors)")
}

func TestCheck_Chronicles(t *testing.T) {
	run := testRun(t, map[string]string{
		"mm3.csv": "id;nom\n1001;Panthier\n1002;Pont\n",
	})

	var out bytes.Buffer
	assert.False(t, check(&out, run, true), "chronicle not written yet")

	table := domain.NewTable([]string{"1001"}, []time.Time{time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)})
	table.Values[0][0] = 12
	require.NoError(t, chronicle.NewStore(run.Results).WriteCatalog(run.Catalogs[0].Path, table))

	out.Reset()
	assert.False(t, check(&out, run, true))
	assert.Contains(t, out.String(), "station 1002 missing from chronicle")
}
