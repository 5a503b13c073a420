package joins

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

const (
	whitespaceToken = iota
	joinTypeToken
	joinToken
	asToken
	onToken
	identifierToken
	backtickToken
	doubleQuoteToken
	singleQuoteToken
	parenthesesToken
)

var whitespaceMatcher = parsly.NewToken(whitespaceToken, "Whitespace", matcher.NewWhiteSpace())
var joinTypeMatcher = parsly.NewToken(joinTypeToken, "JoinType", matcher.NewFragmentsFold(
	[]byte("left"), []byte("right"), []byte("inner"), []byte("outer"),
	[]byte("cross"), []byte("full"), []byte("natural"),
))
var joinMatcher = parsly.NewToken(joinToken, "JOIN", matcher.NewFragmentsFold([]byte("join")))
var asMatcher = parsly.NewToken(asToken, "AS", matcher.NewFragmentsFold([]byte("as")))
var onMatcher = parsly.NewToken(onToken, "ON", matcher.NewFragmentsFold([]byte("on")))
var identifierMatcher = parsly.NewToken(identifierToken, "Identifier", &identifierMatch{})
var backtickMatcher = parsly.NewToken(backtickToken, "`...`", &quotedMatch{quote: '`'})
var doubleQuoteMatcher = parsly.NewToken(doubleQuoteToken, "\"...\"", matcher.NewBlock('"', '"', '\\'))
var singleQuoteMatcher = parsly.NewToken(singleQuoteToken, "'...'", matcher.NewBlock('\'', '\'', '\\'))
var parenthesesMatcher = parsly.NewToken(parenthesesToken, "( ... )", matcher.NewBlock('(', ')', '\\'))

// quotedMatch matches a quoted identifier, where a doubled quote stands for
// a literal one. matcher.Block treats a backtick as a string opener and never
// finds its end.
type quotedMatch struct {
	quote byte
}

func (q *quotedMatch) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	if cursor.Pos >= cursor.InputSize || input[cursor.Pos] != q.quote {
		return 0
	}
	for i := cursor.Pos + 1; i < cursor.InputSize; i++ {
		if input[i] != q.quote {
			continue
		}
		if i+1 < cursor.InputSize && input[i+1] == q.quote {
			i++
			continue
		}
		return i + 1 - cursor.Pos
	}
	return 0
}

type identifierMatch struct{}

func (i *identifierMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	for pos < cursor.InputSize && isIdentifierPart(cursor.Input[pos]) {
		pos++
	}
	return pos - cursor.Pos
}

func isIdentifierPart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_' || b == '$'
}

// atWordStart reports whether the cursor sits on the first byte of a word.
func atWordStart(cursor *parsly.Cursor) bool {
	if cursor.Pos >= cursor.InputSize || !isIdentifierPart(cursor.Input[cursor.Pos]) {
		return false
	}
	return cursor.Pos == 0 || !isIdentifierPart(cursor.Input[cursor.Pos-1])
}

// matchKeyword consumes token only when it forms a whole word.
func matchKeyword(cursor *parsly.Cursor, token *parsly.Token) bool {
	start := cursor.Pos
	matched := cursor.MatchOne(token)
	if matched.Code != token.Code {
		cursor.Pos = start
		return false
	}
	if cursor.Pos < cursor.InputSize && isIdentifierPart(cursor.Input[cursor.Pos]) {
		cursor.Pos = start
		return false
	}
	return true
}

// peekKeyword reports whether token starts at the cursor without consuming it.
func peekKeyword(cursor *parsly.Cursor, token *parsly.Token) bool {
	start := cursor.Pos
	ok := matchKeyword(cursor, token)
	cursor.Pos = start
	return ok
}

func skipWhitespace(cursor *parsly.Cursor) bool {
	before := cursor.Pos
	_ = cursor.MatchOne(whitespaceMatcher)
	return before != cursor.Pos
}

// skipInlineSpace consumes spaces and tabs, never a newline.
func skipInlineSpace(cursor *parsly.Cursor) bool {
	before := cursor.Pos
	for cursor.Pos < cursor.InputSize && (cursor.Input[cursor.Pos] == ' ' || cursor.Input[cursor.Pos] == '\t') {
		cursor.Pos++
	}
	return before != cursor.Pos
}

// skipBlock consumes a quoted string or a parenthesised block.
func skipBlock(cursor *parsly.Cursor) bool {
	if cursor.Pos >= cursor.InputSize {
		return false
	}
	var token *parsly.Token
	switch cursor.Input[cursor.Pos] {
	case '\'':
		token = singleQuoteMatcher
	case '"':
		token = doubleQuoteMatcher
	case '`':
		token = backtickMatcher
	case '(':
		token = parenthesesMatcher
	default:
		return false
	}
	return cursor.MatchOne(token).Code == token.Code
}
