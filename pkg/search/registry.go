// Package search turns raw request parameters into validated search
// parameters and the clause overlay those parameters contribute.
//
// Each searchable parameter is backed by a Handler registered by name. A
// handler receives the parameter value and returns a Contribution: the SQL
// fragments to add when the parameter is present, and optionally a
// normalizer for the value itself.
//
//	reg := search.NewRegistry().
//		Register("starts_with", search.HandlerFunc(func(any) search.Contribution {
//			return search.Contribution{
//				Where:     "AND `users`.`name` LIKE :starts_with",
//				Normalize: func(v any) any { return fmt.Sprint(v) + "%" },
//			}
//		}))
//
//	params := search.ParseParams(reg, raw)
//	overlay := search.Clauses(reg, params)
package search

import "github.com/pthm/sqlcompose/pkg/clause"

// Contribution is what a Handler adds to a search for one parameter value.
// Empty fragments leave the corresponding clause untouched.
type Contribution struct {
	Select string
	Join   string
	Where  string
	Order  string
	Group  string

	// Normalize, when set, replaces the raw parameter value before it is
	// bound to the statement.
	Normalize func(value any) any
}

// Set returns the clause fragments of the contribution.
func (c Contribution) Set() clause.Set {
	return clause.Set{
		Select: c.Select,
		Join:   c.Join,
		Where:  c.Where,
		Order:  c.Order,
		Group:  c.Group,
	}
}

// Handler produces the contribution of one search parameter.
// Handlers must be stateless; they are invoked once to normalize a value and
// again to contribute clauses.
type Handler interface {
	Contribute(value any) Contribution
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(value any) Contribution

// Contribute calls f(value).
func (f HandlerFunc) Contribute(value any) Contribution {
	return f(value)
}

// Static returns a Handler that always contributes c.
func Static(c Contribution) Handler {
	return HandlerFunc(func(any) Contribution { return c })
}

// Registry maps parameter names to handlers. Names are iterated in
// registration order, which fixes the order contributions are merged in.
//
// A Registry is built once at model definition time and must not be modified
// while searches run.
type Registry struct {
	names      []string
	handlers   map[string]Handler
	pagination Pagination
}

// NewRegistry creates an empty registry with the default pagination.
func NewRegistry() *Registry {
	return &Registry{
		handlers:   make(map[string]Handler),
		pagination: DefaultPagination,
	}
}

// Register adds or replaces the handler for name. Replacing keeps the
// original position. The pagination parameter names cannot be registered.
func (r *Registry) Register(name string, h Handler) *Registry {
	if isPaginationKey(name) || h == nil {
		return r
	}
	if _, ok := r.handlers[name]; !ok {
		r.names = append(r.names, name)
	}
	r.handlers[name] = h
	return r
}

// RegisterFunc is shorthand for Register(name, HandlerFunc(fn)).
func (r *Registry) RegisterFunc(name string, fn func(value any) Contribution) *Registry {
	return r.Register(name, HandlerFunc(fn))
}

// WithDefaults sets the pagination applied when page or limit is missing or
// invalid. Non-positive values keep the current default.
func (r *Registry) WithDefaults(p Pagination) *Registry {
	if p.Page > 0 {
		r.pagination.Page = p.Page
	}
	if p.Limit > 0 {
		r.pagination.Limit = p.Limit
	}
	return r
}

// Defaults returns the registry pagination defaults.
func (r *Registry) Defaults() Pagination {
	return r.pagination
}

// Names returns the registered parameter names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Lookup returns the handler registered for name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	return len(r.names)
}
