// Package dialect provides the database specific parts of statement
// finalization: literal escaping, identifier quoting, the pagination clause
// and the database/sql driver to open.
package dialect

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/pthm/sqlcompose/pkg/clause"
	"github.com/pthm/sqlcompose/pkg/query"
)

// ErrUnknownDialect is returned by Lookup for an unregistered name.
var ErrUnknownDialect = errors.New("dialect: unknown dialect")

// ErrInvalidDSN is returned by ValidateDSN when a connection string cannot be
// parsed by the dialect's driver.
var ErrInvalidDSN = errors.New("dialect: invalid data source name")

// Dialect describes one database flavour.
type Dialect interface {
	query.Escaper

	// Name is the canonical dialect name.
	Name() string
	// DriverName is the database/sql driver name to open connections with.
	DriverName() string
	// QuoteIdent quotes a table or column name.
	QuoteIdent(ident string) string
	// LimitTemplate is the pagination suffix, with :offset and :limit tokens.
	LimitTemplate() string
	// Where is the always-true predicate seeded into base clause sets.
	Where() string
	// ValidateDSN checks that dsn can be parsed by the driver.
	ValidateDSN(dsn string) error
}

// FactoryOptions returns the clause factory options matching d.
func FactoryOptions(d Dialect) []clause.FactoryOption {
	return []clause.FactoryOption{
		clause.WithQuote(d.QuoteIdent),
		clause.WithWhere(d.Where()),
	}
}

// Count wraps sql in a count statement quoted for d.
func Count(d Dialect, sql string) string {
	return query.CountQuoted(d.QuoteIdent, sql)
}

var registry = map[string]Dialect{
	"mysql":      MySQL{},
	"postgres":   Postgres{},
	"postgresql": Postgres{},
	"pgx":        Postgres{Driver: "pgx"},
	"sqlite":     SQLite{},
	"sqlite3":    SQLite{},
}

// Lookup returns the dialect registered under name (case-insensitive).
func Lookup(name string) (Dialect, error) {
	d, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownDialect, name, strings.Join(Names(), ", "))
	}
	return d, nil
}

// Names returns the registered dialect names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MySQL escapes with backslashes and quotes identifiers with backticks.
type MySQL struct{}

var mysqlLiterals = literals{
	str:   backslashString,
	bytes: hexBytes,
	time:  "2006-01-02 15:04:05.999999",
}

func (MySQL) Name() string       { return "mysql" }
func (MySQL) DriverName() string { return "mysql" }

func (MySQL) Escape(v any) (string, error) {
	return mysqlLiterals.render(v)
}

func (MySQL) QuoteIdent(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (MySQL) LimitTemplate() string { return query.DefaultLimitTemplate }
func (MySQL) Where() string         { return clause.DefaultWhere }

func (MySQL) ValidateDSN(dsn string) error {
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDSN, err)
	}
	return nil
}

// Postgres quotes literals and identifiers the way lib/pq does. Driver
// selects the database/sql driver; it defaults to lib/pq ("postgres").
type Postgres struct {
	Driver string
}

var postgresLiterals = literals{
	str: pq.QuoteLiteral,
	bytes: func(b []byte) string {
		return `'\x` + hexString(b) + `'::bytea`
	},
	time: "2006-01-02 15:04:05.999999999Z07:00",
}

func (Postgres) Name() string { return "postgres" }

func (p Postgres) DriverName() string {
	if p.Driver == "" {
		return "postgres"
	}
	return p.Driver
}

func (Postgres) Escape(v any) (string, error) {
	return postgresLiterals.render(v)
}

func (Postgres) QuoteIdent(ident string) string {
	return pq.QuoteIdentifier(ident)
}

func (Postgres) LimitTemplate() string { return " LIMIT :limit OFFSET :offset" }
func (Postgres) Where() string         { return "WHERE TRUE" }

func (Postgres) ValidateDSN(dsn string) error {
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDSN, err)
	}
	return nil
}

// SQLite doubles quotes in literals. Identifiers are quoted with backticks,
// which SQLite accepts for MySQL compatibility.
type SQLite struct{}

var sqliteLiterals = literals{
	str:   doubledString,
	bytes: hexBytes,
	time:  "2006-01-02 15:04:05.999999999-07:00",
}

func (SQLite) Name() string       { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite" }

func (SQLite) Escape(v any) (string, error) {
	return sqliteLiterals.render(v)
}

func (SQLite) QuoteIdent(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (SQLite) LimitTemplate() string { return query.DefaultLimitTemplate }
func (SQLite) Where() string         { return clause.DefaultWhere }

func (SQLite) ValidateDSN(dsn string) error {
	if strings.TrimSpace(dsn) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidDSN)
	}
	return nil
}
