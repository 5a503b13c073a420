// Package query finalizes composed SQL: named parameter substitution,
// pagination and the companion count query.
package query

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/viant/parsly"
)

// ErrInvalidParameters is returned when the parameters passed to Interpolate
// are not a map keyed by strings.
var ErrInvalidParameters = errors.New("query: invalid parameters")

// IsInvalidParametersErr reports whether err is or wraps ErrInvalidParameters.
func IsInvalidParametersErr(err error) bool {
	return errors.Is(err, ErrInvalidParameters)
}

// Escaper renders a Go value as a SQL literal safe to splice into a
// statement. Implementations are provided per database in pkg/dialect.
type Escaper interface {
	Escape(v any) (string, error)
}

// EscaperFunc adapts a function to Escaper.
type EscaperFunc func(v any) (string, error)

// Escape calls f(v).
func (f EscaperFunc) Escape(v any) (string, error) {
	return f(v)
}

// DefaultLimitTemplate is the pagination suffix used when the escaper does not
// provide one.
const DefaultLimitTemplate = " LIMIT :offset, :limit"

type limitTemplater interface {
	LimitTemplate() string
}

// Interpolate replaces every :name token in sql whose name is a key of params
// with the escaped value. Tokens without a matching key are left verbatim.
// Substituted text is never scanned again.
//
// params must be a map with string keys (a nil map is allowed); anything else
// fails with ErrInvalidParameters.
func Interpolate(esc Escaper, sql string, params any) (string, error) {
	lookup, err := lookupOf(params)
	if err != nil {
		return "", err
	}

	cursor := parsly.NewCursor("", []byte(sql), 0)
	var sb strings.Builder
	sb.Grow(len(sql))
	last := 0
	for cursor.Pos < cursor.InputSize {
		start := cursor.Pos
		matched := cursor.MatchOne(placeholderMatcher)
		if matched.Code != placeholderToken {
			cursor.Pos = start + 1
			continue
		}
		name := matched.Text(cursor)[1:]
		value, ok := lookup(name)
		if !ok {
			continue
		}
		literal, err := esc.Escape(value)
		if err != nil {
			return "", fmt.Errorf("escape parameter %q: %w", name, err)
		}
		sb.WriteString(sql[last:start])
		sb.WriteString(literal)
		last = cursor.Pos
	}
	sb.WriteString(sql[last:])
	return sb.String(), nil
}

func lookupOf(params any) (func(string) (any, bool), error) {
	if m, ok := params.(map[string]any); ok {
		return func(name string) (any, bool) {
			v, ok := m[name]
			return v, ok
		}, nil
	}

	v := reflect.ValueOf(params)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: expected a map with string keys, got %T", ErrInvalidParameters, params)
	}
	keyType := v.Type().Key()
	return func(name string) (any, bool) {
		item := v.MapIndex(reflect.ValueOf(name).Convert(keyType))
		if !item.IsValid() {
			return nil, false
		}
		return item.Interface(), true
	}, nil
}

// Paginate appends the pagination clause of esc, interpolated with params, to
// sql. params must carry offset and limit. sql itself is not scanned, so it
// may already be interpolated.
func Paginate(esc Escaper, sql string, params any) (string, error) {
	template := DefaultLimitTemplate
	if t, ok := esc.(limitTemplater); ok {
		template = t.LimitTemplate()
	}
	limit, err := Interpolate(esc, template, params)
	if err != nil {
		return "", err
	}
	return sql + limit, nil
}

// Count wraps sql in a statement returning its row count in a column named
// count.
func Count(sql string) string {
	return "SELECT COUNT(*) AS `count` FROM (" + sql + ") AS `temp`"
}

// CountQuoted is Count for databases that do not quote identifiers with
// backticks.
func CountQuoted(quote func(string) string, sql string) string {
	if quote == nil {
		return Count(sql)
	}
	return "SELECT COUNT(*) AS " + quote("count") + " FROM (" + sql + ") AS " + quote("temp")
}

// CacheBust appends a random trailing comment so that query caches keyed by
// statement text treat sql as a new statement.
func CacheBust(sql string) string {
	return sql + " -- " + uuid.NewString()
}
