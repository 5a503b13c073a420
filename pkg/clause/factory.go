package clause

import (
	"errors"

	"github.com/pthm/sqlcompose/pkg/joins"
)

// ErrTableRequired is returned when a Factory is defined without a table.
var ErrTableRequired = errors.New("clause: table name required")

// DefaultWhere is the predicate seeded into a base Set without one.
const DefaultWhere = "WHERE 1"

// QuoteFunc quotes a table identifier.
type QuoteFunc func(ident string) string

// Backtick quotes an identifier MySQL style.
func Backtick(ident string) string {
	return "`" + ident + "`"
}

// Factory holds the base Set of one table and composes statements from it.
// A Factory is immutable and safe for concurrent use.
type Factory struct {
	table string
	base  Set
}

// FactoryOption configures a Factory.
type FactoryOption func(*factoryOptions)

type factoryOptions struct {
	quote QuoteFunc
	where string
}

// WithQuote sets the identifier quoting used for the default fragments.
// The default is Backtick.
func WithQuote(quote QuoteFunc) FactoryOption {
	return func(o *factoryOptions) {
		if quote != nil {
			o.quote = quote
		}
	}
}

// WithWhere sets the predicate seeded when the base Set has none. The default
// is "WHERE 1"; databases without integer truthiness need "WHERE TRUE".
func WithWhere(where string) FactoryOption {
	return func(o *factoryOptions) {
		if !isBlank(where) {
			o.where = where
		}
	}
}

// NewFactory defines the base Set for table. Fragments left empty in base are
// seeded with the table defaults:
//
//	SELECT <table>.*
//	FROM <table>
//	WHERE 1
//
// Join, order and group default to empty. base.From is ignored.
func NewFactory(table string, base Set, opts ...FactoryOption) (*Factory, error) {
	if table == "" {
		return nil, ErrTableRequired
	}

	o := factoryOptions{quote: Backtick, where: DefaultWhere}
	for _, opt := range opts {
		opt(&o)
	}

	quoted := o.quote(table)
	seeded := Set{
		Select: base.Select,
		From:   "FROM " + quoted,
		Join:   base.Join,
		Where:  base.Where,
		Order:  base.Order,
		Group:  base.Group,
	}
	if isBlank(seeded.Select) {
		seeded.Select = "SELECT " + quoted + ".*"
	}
	if isBlank(seeded.Where) {
		seeded.Where = o.where
	}

	return &Factory{table: table, base: seeded}, nil
}

// Table returns the table name the factory was defined for.
func (f *Factory) Table() string {
	return f.table
}

// Base returns a copy of the seeded base Set.
func (f *Factory) Base() Set {
	return f.base
}

// Merge overlays user on the base Set and removes repeated joins.
func (f *Factory) Merge(user Set) Set {
	merged := Merge(f.base, user)
	merged.Join = joins.Dedupe(merged.Join)
	return merged
}

// Compose renders the base Set merged with user.
func (f *Factory) Compose(user Set) string {
	return Render(f.Merge(user))
}
