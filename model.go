package sqlcompose

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pthm/sqlcompose/pkg/clause"
	"github.com/pthm/sqlcompose/pkg/dialect"
	"github.com/pthm/sqlcompose/pkg/materialize"
	"github.com/pthm/sqlcompose/pkg/query"
	"github.com/pthm/sqlcompose/pkg/search"
)

// Model composes and runs SELECT statements for one table.
//
// A Model is immutable after NewModel returns and safe for concurrent use.
// It holds no database handle; every query method takes a Querier.
type Model struct {
	factory *clause.Factory
	dialect dialect.Dialect
	logger  *slog.Logger
	cache   CountCache
	noCache bool
}

// Option configures a Model.
type Option func(*Model)

// WithDialect sets the database dialect used for escaping, identifier quoting
// and pagination. The default is dialect.MySQL.
func WithDialect(d dialect.Dialect) Option {
	return func(m *Model) {
		if d != nil {
			m.dialect = d
		}
	}
}

// WithLogger sets the logger. Composed statements are logged at debug level
// and driver failures at error level. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithCountCache caches search counts by count statement text.
func WithCountCache(c CountCache) Option {
	return func(m *Model) {
		m.cache = c
	}
}

// WithNoCache appends a random comment to every statement so that server
// side query caches never serve a stale result. It also bypasses the count
// cache.
func WithNoCache() Option {
	return func(m *Model) {
		m.noCache = true
	}
}

// NewModel defines a model for table. Fragments left empty in base are
// seeded with the table defaults (all columns, no filter).
func NewModel(table string, base clause.Set, opts ...Option) (*Model, error) {
	m := &Model{
		dialect: dialect.MySQL{},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}

	f, err := clause.NewFactory(table, base, dialect.FactoryOptions(m.dialect)...)
	if err != nil {
		return nil, err
	}
	m.factory = f
	return m, nil
}

// Table returns the model table.
func (m *Model) Table() string {
	return m.factory.Table()
}

// Dialect returns the model dialect.
func (m *Model) Dialect() dialect.Dialect {
	return m.dialect
}

// Base returns the seeded base clause set.
func (m *Model) Base() clause.Set {
	return m.factory.Base()
}

// Compose renders the base clause set merged with user. Placeholders are not
// substituted.
func (m *Model) Compose(user clause.Set) string {
	return m.factory.Compose(user)
}

// Result is the outcome of a search.
type Result struct {
	// Params are the validated search parameters, without the derived offset.
	Params search.Params `json:"params"`
	// Count is the number of rows matching the search, ignoring pagination.
	Count int64 `json:"count"`
	// Rows is the requested page of materialized rows.
	Rows []materialize.Entity `json:"rows"`
}

// Prepared holds the statements of a search, ready to run.
type Prepared struct {
	// Params are the validated search parameters, including offset.
	Params search.Params
	// SQL is the paginated data statement.
	SQL string
	// CountSQL counts every row the unpaginated statement matches.
	CountSQL string
}

// Prepare validates raw against reg and builds the data and count statements
// without running them.
func (m *Model) Prepare(reg *search.Registry, raw search.Params) (*Prepared, error) {
	params := search.ParseParams(reg, raw)
	composed := m.factory.Compose(search.Clauses(reg, params))

	stmt, err := query.Interpolate(m.dialect, composed, params)
	if err != nil {
		return nil, err
	}
	paged, err := query.Paginate(m.dialect, stmt, params)
	if err != nil {
		return nil, err
	}

	return &Prepared{
		Params:   params,
		SQL:      paged,
		CountSQL: dialect.Count(m.dialect, stmt),
	}, nil
}

// Search validates raw against reg, runs the paginated data query and the
// count query, and returns the materialized page.
//
// The two queries are independent reads: a concurrent write between them can
// make Count disagree with Rows unless q is a transaction with a suitable
// isolation level. Any failure fails the whole search.
func (m *Model) Search(ctx context.Context, q Querier, reg *search.Registry, raw search.Params) (*Result, error) {
	p, err := m.Prepare(reg, raw)
	if err != nil {
		return nil, err
	}

	rows, err := m.run(ctx, q, p.SQL, p.Params)
	if err != nil {
		return nil, err
	}
	count, err := m.count(ctx, q, p.CountSQL, p.Params)
	if err != nil {
		return nil, err
	}

	return &Result{
		Params: search.Provenance(p.Params),
		Count:  count,
		Rows:   rows,
	}, nil
}

// Page runs only the paginated data statement of raw, without counting.
func (m *Model) Page(ctx context.Context, q Querier, reg *search.Registry, raw search.Params) ([]materialize.Entity, error) {
	p, err := m.Prepare(reg, raw)
	if err != nil {
		return nil, err
	}
	return m.run(ctx, q, p.SQL, p.Params)
}

// Filter runs the search composition of raw without pagination and returns
// every matching row.
func (m *Model) Filter(ctx context.Context, q Querier, reg *search.Registry, raw search.Params) ([]materialize.Entity, error) {
	params := search.ParseParams(reg, raw)
	stmt, err := query.Interpolate(m.dialect, m.factory.Compose(search.Clauses(reg, params)), params)
	if err != nil {
		return nil, err
	}
	return m.run(ctx, q, stmt, params)
}

// Get composes the base clause set merged with user, substitutes params and
// returns every row.
func (m *Model) Get(ctx context.Context, q Querier, user clause.Set, params map[string]any) ([]materialize.Entity, error) {
	stmt, err := query.Interpolate(m.dialect, m.factory.Compose(user), params)
	if err != nil {
		return nil, err
	}
	return m.run(ctx, q, stmt, params)
}

// GetOne is Get returning only the first row. It fails with ErrNotFound when
// no row matches.
func (m *Model) GetOne(ctx context.Context, q Querier, user clause.Set, params map[string]any) (materialize.Entity, error) {
	stmt, err := query.Interpolate(m.dialect, m.factory.Compose(user), params)
	if err != nil {
		return nil, err
	}
	rows, err := m.run(ctx, q, stmt, params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, notFound(stmt, params)
	}
	return rows[0], nil
}

// GetWhere is Get with a predicate overlay, typically starting with AND.
func (m *Model) GetWhere(ctx context.Context, q Querier, where string, params map[string]any) ([]materialize.Entity, error) {
	return m.Get(ctx, q, clause.Set{Where: where}, params)
}

// GetOneWhere is GetOne with a predicate overlay.
func (m *Model) GetOneWhere(ctx context.Context, q Querier, where string, params map[string]any) (materialize.Entity, error) {
	return m.GetOne(ctx, q, clause.Set{Where: where}, params)
}

// GetWhereParams selects project (all columns when empty) from the model
// table, bypassing the base clause set, filtered by equality on every key of
// params. Keys are column names, optionally qualified with a dot; a nil value
// matches NULL.
func (m *Model) GetWhereParams(ctx context.Context, q Querier, params map[string]any, project string) ([]materialize.Entity, error) {
	if strings.TrimSpace(project) == "" {
		project = "*"
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s %s", project, m.dialect.QuoteIdent(m.Table()), m.dialect.Where())
	for _, k := range keys {
		column := m.quoteColumn(k)
		if params[k] == nil {
			fmt.Fprintf(&sb, " AND %s IS NULL", column)
			continue
		}
		literal, err := m.dialect.Escape(params[k])
		if err != nil {
			return nil, fmt.Errorf("escape parameter %q: %w", k, err)
		}
		fmt.Fprintf(&sb, " AND %s = %s", column, literal)
	}
	return m.run(ctx, q, sb.String(), params)
}

func (m *Model) quoteColumn(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = m.dialect.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// run executes stmt and materializes the rows.
func (m *Model) run(ctx context.Context, q Querier, stmt string, params map[string]any) ([]materialize.Entity, error) {
	if m.noCache {
		stmt = query.CacheBust(stmt)
	}
	m.logger.DebugContext(ctx, "select", "table", m.Table(), "sql", stmt, "params", params)

	rows, err := q.QueryContext(ctx, stmt)
	if err != nil {
		return nil, m.queryError(ctx, stmt, params, err)
	}
	flat, err := materialize.Scan(rows)
	if err != nil {
		return nil, m.queryError(ctx, stmt, params, err)
	}
	entities, err := materialize.All(flat)
	if err != nil {
		m.logger.ErrorContext(ctx, "materialize failed", "table", m.Table(), "sql", stmt, "error", err)
		return nil, err
	}
	return entities, nil
}

// count runs a count statement, consulting the count cache when configured.
func (m *Model) count(ctx context.Context, q Querier, stmt string, params map[string]any) (int64, error) {
	useCache := m.cache != nil && !m.noCache
	if useCache {
		if n, ok := m.cache.Get(stmt); ok {
			m.logger.DebugContext(ctx, "count cache hit", "table", m.Table(), "sql", stmt)
			return n, nil
		}
	}

	run := stmt
	if m.noCache {
		run = query.CacheBust(stmt)
	}
	m.logger.DebugContext(ctx, "count", "table", m.Table(), "sql", run, "params", params)

	var n int64
	if err := q.QueryRowContext(ctx, run).Scan(&n); err != nil {
		return 0, m.queryError(ctx, run, params, err)
	}
	if useCache {
		m.cache.Set(stmt, n)
	}
	return n, nil
}

func (m *Model) queryError(ctx context.Context, stmt string, params map[string]any, err error) error {
	m.logger.ErrorContext(ctx, "query failed", "table", m.Table(), "sql", stmt, "error", err)
	return &QueryError{SQL: stmt, Params: params, Err: err}
}
