package search

import (
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/pthm/sqlcompose/pkg/clause"
	"github.com/pthm/sqlcompose/pkg/joins"
)

// Reserved parameter names. They are always present in parsed params and are
// never dispatched to a handler.
const (
	PageKey   = "page"
	LimitKey  = "limit"
	OffsetKey = "offset"
)

// Params holds search parameters keyed by name.
type Params map[string]any

// Pagination holds the page number (1-based) and page size.
type Pagination struct {
	Page  int
	Limit int
}

// Offset returns the number of rows skipped before the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// DefaultPagination is used when a registry does not override it.
var DefaultPagination = Pagination{Page: 1, Limit: 16}

func isPaginationKey(name string) bool {
	return name == PageKey || name == LimitKey || name == OffsetKey
}

// ParseParams validates raw request parameters against reg.
//
// Nil values are dropped. Values for registered parameters are replaced by
// their handler's normalizer, if any, and unregistered parameters are
// discarded. page and limit are coerced to positive integers, falling back
// to the registry defaults, and offset is derived from them.
//
// raw is never modified.
func ParseParams(reg *Registry, raw Params) Params {
	if reg == nil {
		reg = NewRegistry()
	}

	parsed := make(Params, reg.Len()+3)
	for _, name := range reg.names {
		value, ok := raw[name]
		if !ok || value == nil {
			continue
		}
		if normalize := reg.handlers[name].Contribute(value).Normalize; normalize != nil {
			value = normalize(value)
		}
		parsed[name] = value
	}

	p := paginate(reg.pagination, raw)
	parsed[PageKey] = p.Page
	parsed[LimitKey] = p.Limit
	parsed[OffsetKey] = p.Offset()
	return parsed
}

func paginate(defaults Pagination, raw Params) Pagination {
	return Pagination{
		Page:  positiveInt(raw[PageKey], defaults.Page),
		Limit: positiveInt(raw[LimitKey], defaults.Limit),
	}
}

// positiveInt reads strings as base 10; cast would treat "010" as octal.
func positiveInt(v any, fallback int) int {
	if v == nil {
		return fallback
	}
	var (
		n   int
		err error
	)
	if s, ok := v.(string); ok {
		n, err = strconv.Atoi(strings.TrimSpace(s))
	} else {
		n, err = cast.ToIntE(v)
	}
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// PaginationOf reads the pagination back out of parsed params.
func PaginationOf(params Params) Pagination {
	return paginate(DefaultPagination, params)
}

// Clauses folds the contributions of every registered parameter present in
// params, in registration order, into one clause overlay. Repeated joins are
// removed from the result.
func Clauses(reg *Registry, params Params) clause.Set {
	var overlay clause.Set
	if reg == nil {
		return overlay
	}
	for _, name := range reg.names {
		value, ok := params[name]
		if !ok || value == nil {
			continue
		}
		overlay = clause.Merge(overlay, reg.handlers[name].Contribute(value).Set())
	}
	overlay.Join = joins.Dedupe(overlay.Join)
	return overlay
}

// Provenance returns the parameters echoed back to the caller: a copy of
// params without the derived offset.
func Provenance(params Params) Params {
	out := make(Params, len(params))
	for k, v := range params {
		if k == OffsetKey {
			continue
		}
		out[k] = v
	}
	return out
}

// Filters returns a copy of params without the pagination keys.
func Filters(params Params) Params {
	out := make(Params, len(params))
	for k, v := range params {
		if isPaginationKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}
