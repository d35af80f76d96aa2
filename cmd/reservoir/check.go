package main

import (
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/reservoir-volume-etl/internal/adapter/catalog"
	"github.com/couchcryptid/reservoir-volume-etl/internal/adapter/chronicle"
	"github.com/couchcryptid/reservoir-volume-etl/internal/config"
	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
)

// CheckCmd validates every input of a run without touching the network.
type CheckCmd struct {
	Chronicles bool `help:"Also check that every catalog has a readable chronicle."`
}

func (c *CheckCmd) Run(app *App) error {
	run, err := config.LoadRun(app.RunPath)
	if err != nil {
		return err
	}
	if !check(os.Stdout, run, c.Chronicles) {
		return fmt.Errorf("%w: run %s failed validation", domain.ErrConfig, app.RunPath)
	}
	return nil
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// check runs the validation phases, prints a summary to w and reports whether
// every phase passed.
func check(w io.Writer, run *config.Run, chronicles bool) bool {
	phases := []*phase{
		checkCatalogs(run),
		checkReference(run),
	}
	if chronicles {
		phases = append(phases, checkChronicles(run))
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-32s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}
	return allPassed
}

// checkCatalogs reads every rubrique file and rejects stations listed in more
// than one catalog.
func checkCatalogs(run *config.Run) *phase {
	p := &phase{name: "Catalogs"}
	owner := make(map[string]string)
	for _, c := range run.Catalogs {
		rubs, err := catalog.ReadRubriques(c.Path)
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		for _, r := range rubs {
			if prev, ok := owner[r.ID]; ok {
				p.errorf("station %s listed in %s and %s", r.ID, prev, c.Path)
				continue
			}
			owner[r.ID] = c.Path
		}
	}
	return p
}

func checkReference(run *config.Run) *phase {
	p := &phase{name: "Reference workbook"}
	if run.Reference.Path == "" {
		return p
	}
	stations, err := catalog.ReadReference(run.Reference.Path, catalog.Layout{
		Sheet:     run.Reference.Sheet,
		HeaderRow: run.Reference.HeaderRow,
	})
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if len(stations) == 0 {
		p.errorf("%s: no reservoir listed", run.Reference.Path)
	}
	return p
}

// checkChronicles verifies that every catalog has a chronicle covering the
// stations it lists.
func checkChronicles(run *config.Run) *phase {
	p := &phase{name: "Chronicles"}
	store := chronicle.NewStore(run.Results)
	for _, c := range run.Catalogs {
		t, err := store.ReadCatalog(c.Path)
		if err != nil {
			p.errorf("%s: %v", c.Path, err)
			continue
		}
		rubs, err := catalog.ReadRubriques(c.Path)
		if err != nil {
			continue // reported by the catalog phase
		}
		for _, r := range rubs {
			if t.Column(r.ID) < 0 {
				p.errorf("%s: station %s missing from chronicle", c.Path, r.ID)
			}
		}
	}
	return p
}
