// Package sqlcompose composes SELECT statements from layered clause fragments
// and turns their flat result rows into nested entities.
//
// # Core Concepts
//
// A Model is defined once per table from a base clause.Set. Callers and
// search handlers supply overlay Sets that are merged on top of the base:
// projections, orderings and groupings are appended as list items, joins and
// predicates as continuation lines. Joins that repeat an alias already joined
// are removed, so independent handlers can each bring the join they need.
//
//	users, err := sqlcompose.NewModel("users", clause.Set{
//		Where: "WHERE `users`.`deleted` = 0",
//	})
//
// # Searching
//
// A search.Registry maps request parameters to the fragments they contribute.
// Search validates the raw parameters, composes the statement, runs the
// paginated data query and the unpaginated count query, and materializes the
// rows:
//
//	reg := search.NewRegistry().
//		RegisterFunc("starts_with", func(any) search.Contribution {
//			return search.Contribution{
//				Where:     "AND `users`.`name` LIKE :starts_with",
//				Normalize: func(v any) any { return fmt.Sprint(v) + "%" },
//			}
//		})
//
//	res, err := users.Search(ctx, db, reg, search.Params{"starts_with": "ab", "page": 2})
//	// res.Params: {starts_with: "ab%", page: 2, limit: 16}
//	// res.Count:  total matches, ignoring pagination
//	// res.Rows:   the page of nested entities
//
// # Parameters
//
// Statements use :name placeholders. Values are escaped by the model's
// dialect and spliced into the text before it reaches the driver; tokens
// without a matching parameter are left as they are.
//
// # Result Rows
//
// Columns aliased "JSON:<name>" are decoded, dotted aliases ("author.name")
// become nested maps, and nested maps without data (all NULL, or a falsy id)
// become nil.
//
// # Transaction Support
//
// Every query method takes a Querier, satisfied by *sql.DB, *sql.Tx and
// *sql.Conn, so searches can run inside a transaction.
package sqlcompose

import (
	"context"
	"database/sql"
)

// Querier executes queries against the database.
// Implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
	_ Querier = (*sql.Conn)(nil)
)
