// Package doctor provides health checks for a sqlcompose setup.
//
// The doctor command validates that the model manifest loads, that every
// model composes a statement, and that those statements run against the
// configured database.
//
// Example usage:
//
//	d := doctor.New(doctor.Options{ManifestPath: "models.yaml", Dialect: dialect.MySQL{}, DSN: dsn})
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pthm/sqlcompose"
	"github.com/pthm/sqlcompose/internal/manifest"
	"github.com/pthm/sqlcompose/pkg/dialect"
	"github.com/pthm/sqlcompose/pkg/search"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical issue that will cause failures.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Color is the terminal color of the status symbol.
func (s Status) Color() lipgloss.Color {
	switch s {
	case StatusPass:
		return lipgloss.Color("2")
	case StatusWarn:
		return lipgloss.Color("3")
	default:
		return lipgloss.Color("1")
	}
}

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "Manifest", "Database").
	Category string

	// Name is a short identifier for the check.
	Name string

	// Status is the check outcome.
	Status Status

	// Message is a human-readable description of the result.
	Message string

	// Details provides additional information for verbose output.
	Details string

	// FixHint suggests how to resolve issues.
	FixHint string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	// Summary counts.
	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Print writes the report grouped by category, in order of first appearance.
// Symbols are colored when w is a terminal.
func (r *Report) Print(w io.Writer, verbose bool) {
	renderer := lipgloss.NewRenderer(w)
	categories := make(map[string][]CheckResult)
	var categoryOrder []string
	for _, check := range r.Checks {
		if _, exists := categories[check.Category]; !exists {
			categoryOrder = append(categoryOrder, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	for _, cat := range categoryOrder {
		_, _ = fmt.Fprintf(w, "\n%s\n", cat)
		for _, check := range categories[cat] {
			symbol := renderer.NewStyle().Foreground(check.Status.Color()).Render(check.Status.Symbol())
			_, _ = fmt.Fprintf(w, "  %s %s\n", symbol, check.Message)
			if verbose && check.Details != "" {
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Options configures a Doctor.
type Options struct {
	// ManifestPath is the model manifest to check.
	ManifestPath string
	// Dialect renders and runs the model statements.
	Dialect dialect.Dialect
	// DSN is the database to run against. Database checks are skipped when
	// it is empty.
	DSN string
	// DefaultLimit is the configured page size.
	DefaultLimit int
}

// Doctor performs health checks on a manifest and database.
type Doctor struct {
	opts Options

	// Populated during Run
	manifest *manifest.Manifest
	models   []checkedModel
	db       *sql.DB
}

type checkedModel struct {
	name     string
	model    *sqlcompose.Model
	registry *search.Registry
}

// New creates a new Doctor instance. A nil dialect means MySQL.
func New(opts Options) *Doctor {
	if opts.Dialect == nil {
		opts.Dialect = dialect.MySQL{}
	}
	return &Doctor{opts: opts}
}

// Run executes all health checks and returns a report. Failed checks are
// recorded in the report; the error is only set when ctx ends.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}
	defer func() {
		if d.db != nil {
			_ = d.db.Close()
			d.db = nil
		}
	}()

	d.checkManifest(report)
	d.checkModels(report)
	d.checkDatabase(ctx, report)
	d.checkQueries(ctx, report)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return report, nil
}

// checkManifest validates the manifest exists and loads.
func (d *Doctor) checkManifest(report *Report) {
	path := d.opts.ManifestPath
	if _, err := os.Stat(path); err != nil {
		report.AddCheck(CheckResult{
			Category: "Manifest",
			Name:     "exists",
			Status:   StatusFail,
			Message:  fmt.Sprintf("Manifest not found at %s", path),
			FixHint:  "Create a models.yaml or set 'models' in sqlcompose.yaml",
		})
		return
	}

	report.AddCheck(CheckResult{
		Category: "Manifest",
		Name:     "exists",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Manifest exists at %s", path),
	})

	m, err := manifest.Load(path)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Manifest",
			Name:     "valid",
			Status:   StatusFail,
			Message:  "Manifest is invalid",
			Details:  err.Error(),
		})
		return
	}
	d.manifest = m

	params := 0
	for _, model := range m.Models {
		params += len(model.Search)
	}
	report.AddCheck(CheckResult{
		Category: "Manifest",
		Name:     "valid",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Manifest is valid (%d models, %d search parameters)", len(m.Models), params),
	})

	if len(m.Models) == 0 {
		report.AddCheck(CheckResult{
			Category: "Manifest",
			Name:     "models",
			Status:   StatusWarn,
			Message:  "Manifest declares no models",
		})
	}
}

// checkModels builds every model and composes its default search.
func (d *Doctor) checkModels(report *Report) {
	if d.manifest == nil {
		return
	}

	for i := range d.manifest.Models {
		def := &d.manifest.Models[i]
		check := CheckResult{Category: "Models", Name: def.Name}

		reg, err := def.Registry(d.opts.DefaultLimit)
		if err == nil {
			var model *sqlcompose.Model
			model, err = def.Build(sqlcompose.WithDialect(d.opts.Dialect))
			if err == nil {
				var p *sqlcompose.Prepared
				if p, err = model.Prepare(reg, nil); err == nil {
					check.Status = StatusPass
					check.Message = fmt.Sprintf("%s: composes for %s", def.Name, d.opts.Dialect.Name())
					check.Details = p.SQL
					d.models = append(d.models, checkedModel{name: def.Name, model: model, registry: reg})
				}
			}
		}
		if err != nil {
			check.Status = StatusFail
			check.Message = fmt.Sprintf("%s: cannot compose", def.Name)
			check.Details = err.Error()
		}
		report.AddCheck(check)
	}
}

// checkDatabase validates the DSN and connects.
func (d *Doctor) checkDatabase(ctx context.Context, report *Report) {
	if d.opts.DSN == "" {
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "configured",
			Status:   StatusWarn,
			Message:  "No database configured, skipping database checks",
			FixHint:  "Set database.url in sqlcompose.yaml or pass --db",
		})
		return
	}

	if err := d.opts.Dialect.ValidateDSN(d.opts.DSN); err != nil {
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "dsn",
			Status:   StatusFail,
			Message:  fmt.Sprintf("DSN is not valid for %s", d.opts.Dialect.Name()),
			Details:  err.Error(),
			FixHint:  "Check database.driver matches the database URL",
		})
		return
	}

	db, err := sql.Open(d.opts.Dialect.DriverName(), d.opts.DSN)
	if err == nil {
		err = db.PingContext(ctx)
		if err != nil {
			_ = db.Close()
		}
	}
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "connect",
			Status:   StatusFail,
			Message:  "Cannot connect to database",
			Details:  err.Error(),
		})
		return
	}
	d.db = db

	report.AddCheck(CheckResult{
		Category: "Database",
		Name:     "connect",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Connected using driver %s", d.opts.Dialect.DriverName()),
	})
}

// checkQueries runs the first row of every composed model.
func (d *Doctor) checkQueries(ctx context.Context, report *Report) {
	if d.db == nil {
		return
	}

	for _, m := range d.models {
		rows, err := m.model.Page(ctx, d.db, m.registry, search.Params{search.LimitKey: 1})
		if err != nil {
			check := CheckResult{
				Category: "Queries",
				Name:     m.name,
				Status:   StatusFail,
				Message:  fmt.Sprintf("%s: query failed", m.name),
				Details:  err.Error(),
			}
			var qe *sqlcompose.QueryError
			if errors.As(err, &qe) && qe.SQLState() != "" {
				check.Details = fmt.Sprintf("SQLSTATE %s: %v", qe.SQLState(), qe.Err)
			}
			report.AddCheck(check)
			continue
		}

		report.AddCheck(CheckResult{
			Category: "Queries",
			Name:     m.name,
			Status:   StatusPass,
			Message:  fmt.Sprintf("%s: query runs (%d sample rows)", m.name, len(rows)),
		})
	}
}
