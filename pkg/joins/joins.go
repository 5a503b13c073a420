// Package joins finds JOIN sub-clauses in a join fragment and removes the ones
// that repeat an alias already joined earlier in the fragment.
//
// Search handlers contribute joins independently, so two handlers that both
// need the same related table each bring their own copy of the JOIN. Dedupe
// keeps the first one:
//
//	joins.Dedupe("JOIN `tag` ON `tag`.`id` = `t`.`tag_id`\n" +
//		"JOIN `tag` ON `tag`.`id` = `t`.`tag_id`")
//	// "JOIN `tag` ON `tag`.`id` = `t`.`tag_id`\n"
//
// Only the composer's own fragments are scanned; this is not a SQL parser.
package joins

import (
	"sort"
	"strings"

	"github.com/viant/parsly"
)

// Fragment is one JOIN sub-clause found in a join fragment.
type Fragment struct {
	// Alias is the explicit alias, or the table name when none was given.
	Alias string
	// Table is the joined table, unquoted.
	Table string
	// Text is the matched sub-clause, from the join keyword to the end of the
	// ON condition.
	Text string
	// Offset is the byte offset of Text in the scanned input.
	Offset int
}

// End returns the offset just past the fragment.
func (f Fragment) End() int {
	return f.Offset + len(f.Text)
}

// Scan returns the JOIN sub-clauses of fragment in order of appearance.
//
// A sub-clause is an optional run of join type keywords (LEFT, RIGHT, INNER,
// OUTER, CROSS, FULL, NATURAL), JOIN, a bare or quoted table, an optional
// [AS] alias, ON and a condition. The condition ends at the next join
// keyword, a newline or the end of input; quoted strings and parenthesised
// blocks inside it are skipped whole. A single space before the terminator is
// not part of the match. Keywords are case-insensitive.
func Scan(fragment string) []Fragment {
	cursor := parsly.NewCursor("", []byte(fragment), 0)
	var result []Fragment
	for cursor.Pos < cursor.InputSize {
		if skipBlock(cursor) {
			continue
		}
		if !atWordStart(cursor) {
			cursor.Pos++
			continue
		}
		start := cursor.Pos
		if f, ok := matchJoin(cursor); ok {
			result = append(result, f)
			continue
		}
		cursor.Pos = start + 1
	}
	return result
}

// Duplicates returns every fragment whose alias was already used by a
// fragment at a lower offset.
func Duplicates(fragments []Fragment) []Fragment {
	first := make(map[string]Fragment, len(fragments))
	for _, f := range fragments {
		if kept, ok := first[f.Alias]; !ok || f.Offset < kept.Offset {
			first[f.Alias] = f
		}
	}
	var dups []Fragment
	for _, f := range fragments {
		if first[f.Alias].Offset != f.Offset {
			dups = append(dups, f)
		}
	}
	return dups
}

// Dedupe removes every JOIN sub-clause that repeats the alias of an earlier
// one. The first occurrence of each alias is kept; a fragment without repeated
// aliases is returned unchanged.
func Dedupe(fragment string) string {
	if fragment == "" {
		return fragment
	}
	dups := Duplicates(Scan(fragment))
	if len(dups) == 0 {
		return fragment
	}

	// Excise from the highest offset down so lower offsets stay valid.
	sort.Slice(dups, func(i, j int) bool { return dups[i].Offset > dups[j].Offset })
	out := fragment
	for _, d := range dups {
		out = out[:d.Offset] + out[d.End():]
	}
	return out
}

func matchJoin(cursor *parsly.Cursor) (Fragment, bool) {
	start := cursor.Pos
	fail := func() (Fragment, bool) {
		cursor.Pos = start
		return Fragment{}, false
	}

	if !matchJoinKeywords(cursor) {
		return fail()
	}
	if !skipWhitespace(cursor) {
		return fail()
	}
	table, ok := matchName(cursor)
	if !ok {
		return fail()
	}

	alias := table
	spaced := skipWhitespace(cursor)
	switch {
	case spaced && matchKeyword(cursor, asMatcher):
		if !skipWhitespace(cursor) {
			return fail()
		}
		if alias, ok = matchName(cursor); !ok {
			return fail()
		}
		spaced = skipWhitespace(cursor)
	case spaced && !peekKeyword(cursor, onMatcher):
		if alias, ok = matchName(cursor); !ok {
			return fail()
		}
		spaced = skipWhitespace(cursor)
	}

	if !spaced || !matchKeyword(cursor, onMatcher) {
		return fail()
	}
	skipInlineSpace(cursor)

	condition := cursor.Pos
	end := scanCondition(cursor)
	// One space before the terminator belongs to the separator.
	if end > condition && cursor.Input[end-1] == ' ' {
		end--
	}
	if end == condition {
		return fail()
	}
	cursor.Pos = end

	return Fragment{
		Alias:  alias,
		Table:  table,
		Text:   string(cursor.Input[start:end]),
		Offset: start,
	}, true
}

// matchJoinKeywords consumes [type keywords...] JOIN.
func matchJoinKeywords(cursor *parsly.Cursor) bool {
	start := cursor.Pos
	for matchKeyword(cursor, joinTypeMatcher) {
		if !skipWhitespace(cursor) {
			cursor.Pos = start
			return false
		}
	}
	if !matchKeyword(cursor, joinMatcher) {
		cursor.Pos = start
		return false
	}
	return true
}

// matchName consumes a possibly qualified, possibly quoted identifier and
// returns it without quotes.
func matchName(cursor *parsly.Cursor) (string, bool) {
	var parts []string
	for {
		part, ok := matchNamePart(cursor)
		if !ok {
			return "", false
		}
		parts = append(parts, part)
		if cursor.Pos >= cursor.InputSize || cursor.Input[cursor.Pos] != '.' {
			break
		}
		cursor.Pos++
	}
	return strings.Join(parts, "."), true
}

func matchNamePart(cursor *parsly.Cursor) (string, bool) {
	matched := cursor.MatchAny(backtickMatcher, doubleQuoteMatcher, identifierMatcher)
	switch matched.Code {
	case backtickToken, doubleQuoteToken:
		text := matched.Text(cursor)
		return text[1 : len(text)-1], true
	case identifierToken:
		return matched.Text(cursor), true
	}
	return "", false
}

// scanCondition advances to the end of an ON condition and returns its end.
func scanCondition(cursor *parsly.Cursor) int {
	for cursor.Pos < cursor.InputSize {
		if cursor.Input[cursor.Pos] == '\n' {
			return cursor.Pos
		}
		if skipBlock(cursor) {
			continue
		}
		if atWordStart(cursor) {
			start := cursor.Pos
			if matchJoinKeywords(cursor) {
				cursor.Pos = start
				return start
			}
		}
		cursor.Pos++
	}
	return cursor.Pos
}
