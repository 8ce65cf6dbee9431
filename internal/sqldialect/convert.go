package sqldialect

import (
	"fmt"
	"regexp"
	"strings"

	"bricksync/internal/domain"
)

// Converter implements domain.DialectConverter.
type Converter struct{}

var _ domain.DialectConverter = Converter{}

// NewConverter returns a Converter.
func NewConverter() Converter { return Converter{} }

// functionRenames maps lower-cased function names per (from, to) family pair.
var functionRenames = map[[2]family]map[string]string{
	{familySpark, familySnowflake}: {
		"collect_list": "array_agg",
		"collect_set":  "array_unique_agg",
		"size":         "array_size",
		"cardinality":  "array_size",
		"ucase":        "upper",
		"lcase":        "lower",
		"std":          "stddev",
		"now":          "current_timestamp",
		"getdate":      "current_timestamp",
	},
	{familySpark, familyDuckDB}: {
		"collect_list": "array_agg",
		"size":         "len",
		"cardinality":  "len",
		"ucase":        "upper",
		"lcase":        "lower",
		"nvl":          "coalesce",
		"std":          "stddev",
		"getdate":      "current_timestamp",
	},
	{familySnowflake, familySpark}: {
		"iff":        "if",
		"array_size": "size",
		"listagg":    "string_agg",
		"to_varchar": "string",
		"sysdate":    "current_timestamp",
	},
	{familySnowflake, familyDuckDB}: {
		"iff":        "if",
		"array_size": "len",
		"nvl":        "coalesce",
		"listagg":    "string_agg",
		"sysdate":    "current_timestamp",
	},
	{familyDuckDB, familySpark}: {
		"list":          "collect_list",
		"len":           "size",
		"list_distinct": "array_distinct",
	},
	{familyDuckDB, familySnowflake}: {
		"list":  "array_agg",
		"len":   "array_size",
		"if":    "iff",
		"today": "current_date",
	},
}

// unconvertibleFunctions have no single-function equivalent in the target
// family; their presence fails the conversion.
var unconvertibleFunctions = map[[2]family]map[string]bool{
	{familySpark, familySnowflake}:  {"explode": true, "posexplode": true, "inline": true},
	{familySpark, familyDuckDB}:     {"posexplode": true, "inline": true},
	{familySnowflake, familyDuckDB}: {"to_varchar": true, "object_construct": true, "flatten": true},
	{familySnowflake, familySpark}:  {"flatten": true, "object_construct": true},
}

// unsupportedWords lists constructs with no equivalent outside the source
// family. The key is the pair of adjacent keywords, lower-cased.
var unsupportedWords = map[family][][2]string{
	familySpark: {
		{"lateral", "view"},
		{"cluster", "by"},
		{"distribute", "by"},
		{"sort", "by"},
	},
	familySnowflake: {
		{"match_recognize", ""},
		{"connect", "by"},
	},
}

type family int

const (
	familySpark family = iota
	familySnowflake
	familyDuckDB
)

func familyOf(d domain.Dialect) (family, error) {
	switch d {
	case domain.DialectDatabricks, domain.DialectSpark:
		return familySpark, nil
	case domain.DialectSnowflake:
		return familySnowflake, nil
	case domain.DialectDuckDB:
		return familyDuckDB, nil
	default:
		return 0, fmt.Errorf("unsupported dialect %q", d)
	}
}

// Convert rewrites sql from one dialect into another. Conversions within the
// same dialect family return the input unchanged.
func (Converter) Convert(sql string, from, to domain.Dialect) (string, error) {
	ff, err := familyOf(from)
	if err != nil {
		return "", err
	}
	tf, err := familyOf(to)
	if err != nil {
		return "", err
	}
	if ff == tf {
		return sql, nil
	}

	toks, err := Tokenize(sql, from)
	if err != nil {
		return "", err
	}
	if err := checkUnsupported(toks, ff); err != nil {
		return "", err
	}

	pair := [2]family{ff, tf}
	renames := functionRenames[pair]
	var b strings.Builder
	b.Grow(len(sql))
	for i, tok := range toks {
		switch tok.Type {
		case TOKEN_QUOTED_IDENT:
			b.WriteString(quoteIdent(tok.Value, tf))
		case TOKEN_STRING:
			b.WriteString(quoteString(tok.Value, tf))
		case TOKEN_IDENT:
			if nextSignificant(toks, i).IsPunct("(") {
				name := strings.ToLower(tok.Raw)
				if unconvertibleFunctions[pair][name] {
					return "", fmt.Errorf("function %s at offset %d has no %s equivalent", tok.Raw, tok.Pos, to)
				}
				if repl, ok := renames[name]; ok {
					b.WriteString(matchCase(tok.Raw, repl))
					continue
				}
			}
			b.WriteString(tok.Raw)
		case TOKEN_PUNCT:
			if tok.Raw == ":" && ff == familySpark && tf == familyDuckDB && isPathOperator(toks, i) {
				return "", fmt.Errorf("semi-structured path operator ':' at offset %d has no %s equivalent", tok.Pos, to)
			}
			b.WriteString(tok.Raw)
		default:
			b.WriteString(tok.Raw)
		}
	}
	return b.String(), nil
}

func checkUnsupported(toks []Token, ff family) error {
	sig := significantTokens(toks)
	for i, tok := range sig {
		if tok.Type != TOKEN_IDENT {
			continue
		}
		for _, pair := range unsupportedWords[ff] {
			if !strings.EqualFold(tok.Raw, pair[0]) {
				continue
			}
			if pair[1] == "" || (i+1 < len(sig) && sig[i+1].IsKeyword(pair[1])) {
				return fmt.Errorf("construct %q at offset %d cannot be converted", strings.TrimSpace(pair[0]+" "+pair[1]), tok.Pos)
			}
		}
	}
	return nil
}

// isPathOperator reports whether the ':' at i is a JSON path accessor
// (ident:field) rather than a named parameter or slice bound.
func isPathOperator(toks []Token, i int) bool {
	if i == 0 || i+1 >= len(toks) {
		return false
	}
	return toks[i-1].IsName() && toks[i+1].IsName()
}

func nextSignificant(toks []Token, i int) Token {
	for j := i + 1; j < len(toks); j++ {
		if toks[j].significant() {
			return toks[j]
		}
	}
	return Token{Type: TOKEN_EOF}
}

func significantTokens(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for _, t := range toks {
		if t.significant() {
			out = append(out, t)
		}
	}
	return out
}

func matchCase(orig, repl string) string {
	if orig == strings.ToUpper(orig) {
		return strings.ToUpper(repl)
	}
	return repl
}

var plainIdentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QuoteIdentifier quotes name for dialect d.
func QuoteIdentifier(name string, d domain.Dialect) string {
	f, err := familyOf(d)
	if err != nil {
		f = familyDuckDB
	}
	return quoteIdent(name, f)
}

// QuoteIdentifierIfNeeded quotes name only when it is not a plain identifier.
func QuoteIdentifierIfNeeded(name string, d domain.Dialect) string {
	if plainIdentRe.MatchString(name) {
		return name
	}
	return QuoteIdentifier(name, d)
}

func quoteIdent(name string, f family) string {
	if f == familySpark {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteString(value string, f family) string {
	if f == familySpark {
		r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`)
		return "'" + r.Replace(value) + "'"
	}
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
