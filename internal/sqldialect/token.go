// Package sqldialect converts view bodies between the SQL dialects spoken by
// catalog providers and extracts the table references they contain.
//
// Conversion is token based: identifiers are re-quoted, string literals
// re-escaped, and a small set of functions renamed. Constructs that have no
// equivalent in the target dialect are rejected rather than guessed at.
package sqldialect

import "strings"

// TokenType identifies the lexical class of a token.
type TokenType int

// Token types.
const (
	TOKEN_EOF TokenType = iota
	TOKEN_SPACE
	TOKEN_COMMENT
	TOKEN_IDENT
	TOKEN_QUOTED_IDENT
	TOKEN_STRING
	TOKEN_NUMBER
	TOKEN_PUNCT
	TOKEN_ILLEGAL
)

func (t TokenType) String() string {
	switch t {
	case TOKEN_EOF:
		return "EOF"
	case TOKEN_SPACE:
		return "SPACE"
	case TOKEN_COMMENT:
		return "COMMENT"
	case TOKEN_IDENT:
		return "IDENT"
	case TOKEN_QUOTED_IDENT:
		return "QUOTED_IDENT"
	case TOKEN_STRING:
		return "STRING"
	case TOKEN_NUMBER:
		return "NUMBER"
	case TOKEN_PUNCT:
		return "PUNCT"
	default:
		return "ILLEGAL"
	}
}

// Token is a lexical token. Raw is the exact source text; Value is the
// unquoted content for identifiers and strings.
type Token struct {
	Type  TokenType
	Raw   string
	Value string
	Pos   int
}

// IsKeyword reports whether the token is the unquoted word kw (case-insensitive).
func (t Token) IsKeyword(kw string) bool {
	return t.Type == TOKEN_IDENT && strings.EqualFold(t.Raw, kw)
}

// IsPunct reports whether the token is the punctuation p.
func (t Token) IsPunct(p string) bool {
	return t.Type == TOKEN_PUNCT && t.Raw == p
}

// IsName reports whether the token can be part of an object name.
func (t Token) IsName() bool {
	return t.Type == TOKEN_IDENT || t.Type == TOKEN_QUOTED_IDENT
}

// significant reports whether the token carries meaning for the parser.
func (t Token) significant() bool {
	return t.Type != TOKEN_SPACE && t.Type != TOKEN_COMMENT
}

// reservedAfterTable lists words that cannot be a table alias and end a
// FROM-list entry.
var reservedAfterTable = map[string]bool{
	"where": true, "group": true, "order": true, "having": true, "limit": true,
	"qualify": true, "window": true, "union": true, "intersect": true, "except": true,
	"minus": true, "join": true, "inner": true, "left": true, "right": true,
	"full": true, "cross": true, "natural": true, "on": true, "using": true,
	"lateral": true, "pivot": true, "unpivot": true, "tablesample": true,
	"offset": true, "fetch": true, "as": true, "select": true, "from": true,
	"anti": true, "semi": true, "outer": true, "asof": true, "positional": true,
	"sample": true, "changes": true, "at": true, "before": true, "match_recognize": true,
}

func isReservedAfterTable(t Token) bool {
	return t.Type == TOKEN_IDENT && reservedAfterTable[strings.ToLower(t.Raw)]
}
