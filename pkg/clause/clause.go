// Package clause represents a SELECT statement as six named fragments and
// merges them layer by layer.
//
// A statement is split into projection, source, join, predicate, order and
// group fragments. A table defines a base Set once; callers and search
// handlers supply overlay Sets that are merged on top of it:
//
//	f, err := clause.NewFactory("users", clause.Set{
//		Where: "WHERE `users`.`deleted` = 0",
//	})
//	sql := f.Compose(clause.Set{Where: "AND `users`.`active` = 1"})
//
// Fragments are plain SQL text. The merge rules only decide how two fragments
// of the same kind are joined; callers supply their own connectives (a leading
// AND in a predicate overlay, for example).
package clause

import "strings"

// Kind names one of the six fragments of a Set.
type Kind string

// Fragment kinds.
const (
	KindSelect Kind = "select"
	KindFrom   Kind = "from"
	KindJoin   Kind = "join"
	KindWhere  Kind = "where"
	KindOrder  Kind = "order"
	KindGroup  Kind = "group"
)

// Delimiters placed between a base fragment and an overlay fragment.
const (
	// ListDelimiter continues a comma separated list (projection, ordering, grouping).
	ListDelimiter = "\n,"
	// ContinuationDelimiter continues a statement part (joins, predicates).
	ContinuationDelimiter = "\n"
)

// Set is one layer of a SELECT statement.
//
// From is fixed per table: Merge always keeps the base value.
type Set struct {
	Select string `json:"select,omitempty"`
	From   string `json:"from,omitempty"`
	Join   string `json:"join,omitempty"`
	Where  string `json:"where,omitempty"`
	Order  string `json:"order,omitempty"`
	Group  string `json:"group,omitempty"`
}

// IsZero reports whether every fragment of the set is blank.
func (s Set) IsZero() bool {
	return isBlank(s.Select) && isBlank(s.From) && isBlank(s.Join) &&
		isBlank(s.Where) && isBlank(s.Order) && isBlank(s.Group)
}

// Get returns the fragment of the given kind.
func (s Set) Get(kind Kind) string {
	switch kind {
	case KindSelect:
		return s.Select
	case KindFrom:
		return s.From
	case KindJoin:
		return s.Join
	case KindWhere:
		return s.Where
	case KindOrder:
		return s.Order
	case KindGroup:
		return s.Group
	}
	return ""
}

// Delimiter returns the text placed between a base and an overlay fragment of
// the given kind.
func Delimiter(kind Kind) string {
	switch kind {
	case KindSelect, KindOrder, KindGroup:
		return ListDelimiter
	default:
		return ContinuationDelimiter
	}
}

// MergeFragment joins base and user fragments of one kind.
// A blank user fragment yields base unchanged and a blank base yields user
// unchanged.
func MergeFragment(kind Kind, base, user string) string {
	if isBlank(user) {
		return base
	}
	if isBlank(base) {
		return user
	}
	return base + Delimiter(kind) + user
}

// Merge overlays user on base fragment by fragment. From is never merged.
func Merge(base, user Set) Set {
	return Set{
		Select: MergeFragment(KindSelect, base.Select, user.Select),
		From:   base.From,
		Join:   MergeFragment(KindJoin, base.Join, user.Join),
		Where:  MergeFragment(KindWhere, base.Where, user.Where),
		Order:  MergeFragment(KindOrder, base.Order, user.Order),
		Group:  MergeFragment(KindGroup, base.Group, user.Group),
	}
}

// Fold merges overlays into base left to right.
func Fold(base Set, overlays ...Set) Set {
	for _, o := range overlays {
		base = Merge(base, o)
	}
	return base
}

// Render assembles the set into statement text, one fragment per line, in
// the order select, from, join, where, order, group. Empty fragments still
// occupy their line.
// A set carrying both ORDER BY and GROUP BY is not executable as rendered.
func Render(s Set) string {
	return strings.Join([]string{
		s.Select,
		s.From,
		s.Join,
		s.Where,
		s.Order,
		s.Group,
	}, "\n")
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
