package query

import "github.com/viant/parsly"

const placeholderToken = iota

var placeholderMatcher = parsly.NewToken(placeholderToken, ":name", &placeholderMatch{})

// placeholderMatch matches a colon followed by one or more word characters.
type placeholderMatch struct{}

func (p *placeholderMatch) Match(cursor *parsly.Cursor) int {
	if cursor.Pos >= cursor.InputSize || cursor.Input[cursor.Pos] != ':' {
		return 0
	}
	pos := cursor.Pos + 1
	for pos < cursor.InputSize && isWord(cursor.Input[pos]) {
		pos++
	}
	if pos == cursor.Pos+1 {
		return 0
	}
	return pos - cursor.Pos
}

func isWord(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_'
}
