package config

import (
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

const runDateLayout = "02/01/2006"

// CatalogSource is one rubrique file of a run, fetched as a whole and written
// to its own chronicle.
type CatalogSource struct {
	Path  string
	Step  domain.Step
	Scale float64 // factor converting the catalog unit to Mm3
}

// Reference locates the reservoir reference workbook.
type Reference struct {
	Path      string
	Sheet     string
	HeaderRow int
}

// Run describes one acquisition and reporting run.
type Run struct {
	Catalogs     []CatalogSource
	Start        time.Time
	End          time.Time
	Results      string
	Reference    Reference
	Availability domain.Window
}

type runFile struct {
	Catalogs []struct {
		Path      string   `yaml:"path"`
		Step      string   `yaml:"step"`
		UnitScale *float64 `yaml:"unit_scale"`
	} `yaml:"catalogs"`
	Start     string `yaml:"start"`
	End       string `yaml:"end"`
	Results   string `yaml:"results"`
	Reference struct {
		Path      string `yaml:"path"`
		Sheet     string `yaml:"sheet"`
		HeaderRow int    `yaml:"header_row"`
	} `yaml:"reference"`
	Availability struct {
		From string `yaml:"from"`
		To   string `yaml:"to"`
	} `yaml:"availability"`
}

// LoadRun reads and validates a run file. Every problem is reported as
// domain.ErrConfig before any network call. A missing end date defaults to
// the current day.
func LoadRun(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read run file: %v", domain.ErrConfig, err)
	}
	run, err := parseRun(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return run, nil
}

func parseRun(data []byte) (*Run, error) {
	var raw runFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}

	if len(raw.Catalogs) == 0 {
		return nil, fmt.Errorf("%w: at least one catalog is required", domain.ErrConfig)
	}
	if raw.Results == "" {
		return nil, fmt.Errorf("%w: results directory is required", domain.ErrConfig)
	}

	run := &Run{Results: raw.Results}
	for i, c := range raw.Catalogs {
		if c.Path == "" {
			return nil, fmt.Errorf("%w: catalog %d: path is required", domain.ErrConfig, i+1)
		}
		step := domain.StepNone
		if c.Step != "" {
			s, err := domain.ParseStep(c.Step)
			if err != nil {
				return nil, fmt.Errorf("catalog %s: %w", c.Path, err)
			}
			step = s
		}
		scale := 1.0
		if c.UnitScale != nil {
			scale = *c.UnitScale
		}
		if scale <= 0 {
			return nil, fmt.Errorf("%w: catalog %s: unit_scale must be positive", domain.ErrConfig, c.Path)
		}
		run.Catalogs = append(run.Catalogs, CatalogSource{Path: c.Path, Step: step, Scale: scale})
	}

	if raw.Start == "" {
		return nil, fmt.Errorf("%w: start date is required", domain.ErrConfig)
	}
	start, err := time.Parse(runDateLayout, raw.Start)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid start date %q (want dd/mm/yyyy)", domain.ErrConfig, raw.Start)
	}
	run.Start = start

	if raw.End == "" {
		run.End = domain.DayStart(domain.Now())
	} else {
		end, err := time.Parse(runDateLayout, raw.End)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid end date %q (want dd/mm/yyyy)", domain.ErrConfig, raw.End)
		}
		run.End = end
	}
	if run.End.Before(run.Start) {
		return nil, fmt.Errorf("%w: end date %s before start date %s", domain.ErrConfig, run.End.Format(runDateLayout), raw.Start)
	}

	run.Reference = Reference{
		Path:      raw.Reference.Path,
		Sheet:     raw.Reference.Sheet,
		HeaderRow: raw.Reference.HeaderRow,
	}

	from, to := raw.Availability.From, raw.Availability.To
	if from == "" {
		from = "2015-01"
	}
	if to == "" {
		to = "2024-12"
	}
	w, err := domain.ParseWindow(from, to)
	if err != nil {
		return nil, err
	}
	run.Availability = w

	return run, nil
}
