// Package manifest loads model definitions from YAML for the CLI.
//
// A manifest declares tables, their base clause sets and the search
// parameters each model accepts:
//
//	models:
//	  - name: users
//	    table: users
//	    sql:
//	      where: "WHERE `users`.`deleted` = 0"
//	    search:
//	      - param: starts_with
//	        where: "AND `users`.`name` LIKE :starts_with"
//	        normalize: [trim, prefix]
//
// A declared parameter contributes its fragments whenever it is present.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/pthm/sqlcompose"
	"github.com/pthm/sqlcompose/pkg/clause"
	"github.com/pthm/sqlcompose/pkg/search"
)

// ErrUnknownModel is returned by Manifest.Model for an undeclared name.
var ErrUnknownModel = errors.New("manifest: unknown model")

// Manifest is a set of model definitions.
type Manifest struct {
	Models []Model `json:"models"`
}

// Model declares one table.
type Model struct {
	Name   string     `json:"name"`
	Table  string     `json:"table"`
	SQL    clause.Set `json:"sql,omitempty"`
	Search []Param    `json:"search,omitempty"`
	// DefaultLimit overrides the configured page size for this model.
	DefaultLimit int `json:"default_limit,omitempty"`
}

// Param declares one search parameter and the fragments it contributes.
type Param struct {
	Param     string   `json:"param"`
	Select    string   `json:"select,omitempty"`
	Join      string   `json:"join,omitempty"`
	Where     string   `json:"where,omitempty"`
	Order     string   `json:"order,omitempty"`
	Group     string   `json:"group,omitempty"`
	Normalize []string `json:"normalize,omitempty"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates a YAML manifest. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.UnmarshalStrict(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks names, tables, parameters and normalizer references.
func (m *Manifest) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(m.Models))
	for i, model := range m.Models {
		label := model.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
			errs = append(errs, fmt.Errorf("model %s: name is required", label))
		} else if seen[model.Name] {
			errs = append(errs, fmt.Errorf("model %s: declared more than once", label))
		}
		seen[model.Name] = true

		if strings.TrimSpace(model.Table) == "" {
			errs = append(errs, fmt.Errorf("model %s: table is required", label))
		}
		if model.DefaultLimit < 0 {
			errs = append(errs, fmt.Errorf("model %s: default_limit must not be negative", label))
		}

		params := make(map[string]bool, len(model.Search))
		for _, p := range model.Search {
			switch {
			case p.Param == "":
				errs = append(errs, fmt.Errorf("model %s: search parameter name is required", label))
				continue
			case p.Param == search.PageKey || p.Param == search.LimitKey || p.Param == search.OffsetKey:
				errs = append(errs, fmt.Errorf("model %s: search parameter %q is reserved for pagination", label, p.Param))
			case params[p.Param]:
				errs = append(errs, fmt.Errorf("model %s: search parameter %q declared more than once", label, p.Param))
			}
			params[p.Param] = true

			if _, err := Chain(p.Normalize...); err != nil {
				errs = append(errs, fmt.Errorf("model %s: search parameter %q: %w", label, p.Param, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Names returns the declared model names in declaration order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Models))
	for i, model := range m.Models {
		names[i] = model.Name
	}
	return names
}

// Model returns the model declared as name.
func (m *Manifest) Model(name string) (*Model, error) {
	for i := range m.Models {
		if m.Models[i].Name == name {
			return &m.Models[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q (declared: %s)", ErrUnknownModel, name, strings.Join(m.Names(), ", "))
}

// Registry builds the search registry of the model. defaultLimit applies
// unless the model declares its own; non-positive values keep the library
// default.
func (m *Model) Registry(defaultLimit int) (*search.Registry, error) {
	limit := defaultLimit
	if m.DefaultLimit > 0 {
		limit = m.DefaultLimit
	}
	reg := search.NewRegistry().WithDefaults(search.Pagination{Limit: limit})

	for _, p := range m.Search {
		normalize, err := Chain(p.Normalize...)
		if err != nil {
			return nil, fmt.Errorf("search parameter %q: %w", p.Param, err)
		}
		reg.Register(p.Param, search.Static(search.Contribution{
			Select:    p.Select,
			Join:      p.Join,
			Where:     p.Where,
			Order:     p.Order,
			Group:     p.Group,
			Normalize: normalize,
		}))
	}
	return reg, nil
}

// Build creates the sqlcompose model.
func (m *Model) Build(opts ...sqlcompose.Option) (*sqlcompose.Model, error) {
	return sqlcompose.NewModel(m.Table, m.SQL, opts...)
}
