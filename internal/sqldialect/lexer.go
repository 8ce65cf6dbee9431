package sqldialect

import (
	"fmt"
	"strings"
	"unicode"

	"bricksync/internal/domain"
)

// Lexer tokenizes SQL text without discarding anything, so the concatenated
// Raw text of all tokens reproduces the input.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination

	// sparkQuoting treats "..." as a string literal and honors backslash
	// escapes inside strings.
	sparkQuoting bool
}

// NewLexer creates a Lexer for input written in the given dialect.
func NewLexer(input string, d domain.Dialect) *Lexer {
	l := &Lexer{input: input, sparkQuoting: isSparkFamily(d)}
	l.readChar()
	return l
}

func isSparkFamily(d domain.Dialect) bool {
	return d == domain.DialectDatabricks || d == domain.DialectSpark
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) atEOF() bool { return l.pos >= len(l.input) }

// NextToken returns the next token. Unterminated strings, quoted identifiers
// and block comments are reported as errors.
func (l *Lexer) NextToken() (Token, error) {
	start := l.pos
	if l.atEOF() {
		return Token{Type: TOKEN_EOF, Pos: start}, nil
	}

	switch {
	case isSpace(l.ch):
		for !l.atEOF() && isSpace(l.ch) {
			l.readChar()
		}
		return l.token(TOKEN_SPACE, start, ""), nil
	case l.ch == '-' && l.peekChar() == '-':
		for !l.atEOF() && l.ch != '\n' {
			l.readChar()
		}
		return l.token(TOKEN_COMMENT, start, ""), nil
	case l.ch == '/' && l.peekChar() == '*':
		l.readChar()
		l.readChar()
		for {
			if l.atEOF() {
				return Token{}, fmt.Errorf("unterminated block comment at offset %d", start)
			}
			if l.ch == '*' && l.peekChar() == '/' {
				l.readChar()
				l.readChar()
				break
			}
			l.readChar()
		}
		return l.token(TOKEN_COMMENT, start, ""), nil
	case l.ch == '\'':
		v, err := l.readDelimited('\'', l.sparkQuoting)
		if err != nil {
			return Token{}, err
		}
		return l.token(TOKEN_STRING, start, v), nil
	case l.ch == '"':
		if l.sparkQuoting {
			v, err := l.readDelimited('"', true)
			if err != nil {
				return Token{}, err
			}
			return l.token(TOKEN_STRING, start, v), nil
		}
		v, err := l.readDelimited('"', false)
		if err != nil {
			return Token{}, err
		}
		return l.token(TOKEN_QUOTED_IDENT, start, v), nil
	case l.ch == '`':
		v, err := l.readDelimited('`', false)
		if err != nil {
			return Token{}, err
		}
		return l.token(TOKEN_QUOTED_IDENT, start, v), nil
	case l.ch == '$' && l.peekChar() == '$':
		l.readChar()
		l.readChar()
		body := l.pos
		for {
			if l.atEOF() {
				return Token{}, fmt.Errorf("unterminated dollar-quoted string at offset %d", start)
			}
			if l.ch == '$' && l.peekChar() == '$' {
				v := l.input[body:l.pos]
				l.readChar()
				l.readChar()
				return l.token(TOKEN_STRING, start, v), nil
			}
			l.readChar()
		}
	case isLetter(l.ch) || l.ch == '_':
		for !l.atEOF() && (isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '$') {
			l.readChar()
		}
		return l.token(TOKEN_IDENT, start, ""), nil
	case isDigit(l.ch):
		l.readNumber()
		return l.token(TOKEN_NUMBER, start, ""), nil
	}

	// Two-character operators first so "::" is never split into ":" ":".
	if two := l.input[start:min(start+2, len(l.input))]; len(two) == 2 {
		switch two {
		case "::", "<=", ">=", "<>", "!=", "||", "->", "=>", "==":
			l.readChar()
			l.readChar()
			return l.token(TOKEN_PUNCT, start, ""), nil
		}
	}
	ch := l.ch
	l.readChar()
	if strings.IndexByte("+-*/%=<>,.;()[]{}:&|^~?!@$#", ch) < 0 {
		return l.token(TOKEN_ILLEGAL, start, ""), nil
	}
	return l.token(TOKEN_PUNCT, start, ""), nil
}

func (l *Lexer) token(tt TokenType, start int, value string) Token {
	raw := l.input[start:l.pos]
	if value == "" && tt == TOKEN_IDENT {
		value = raw
	}
	return Token{Type: tt, Raw: raw, Value: value, Pos: start}
}

// readDelimited consumes a quoted run starting at the opening delimiter and
// returns its unescaped content. A doubled delimiter is always an escaped
// delimiter; backslash escapes are honored only when backslash is true.
func (l *Lexer) readDelimited(delim byte, backslash bool) (string, error) {
	start := l.pos
	l.readChar()
	var b strings.Builder
	for {
		if l.atEOF() {
			return "", fmt.Errorf("unterminated %c-quoted token at offset %d", delim, start)
		}
		switch {
		case backslash && l.ch == '\\':
			l.readChar()
			if l.atEOF() {
				return "", fmt.Errorf("unterminated %c-quoted token at offset %d", delim, start)
			}
			b.WriteByte(unescape(l.ch))
			l.readChar()
		case l.ch == delim && l.peekChar() == delim:
			b.WriteByte(delim)
			l.readChar()
			l.readChar()
		case l.ch == delim:
			l.readChar()
			return b.String(), nil
		default:
			b.WriteByte(l.ch)
			l.readChar()
		}
	}
}

func unescape(ch byte) byte {
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return ch
	}
}

func (l *Lexer) readNumber() {
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
}

// Tokenize lexes the whole input.
func Tokenize(input string, d domain.Dialect) ([]Token, error) {
	l := NewLexer(input, d)
	var toks []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == TOKEN_EOF {
			return toks, nil
		}
		if tok.Type == TOKEN_ILLEGAL {
			return nil, fmt.Errorf("unexpected character %q at offset %d", tok.Raw, tok.Pos)
		}
		toks = append(toks, tok)
	}
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}

func isLetter(ch byte) bool {
	return ch >= 0x80 || unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
