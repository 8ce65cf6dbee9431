package sqldialect

import (
	"fmt"
	"strings"

	"bricksync/internal/domain"
)

// TableRef is a table name found in a FROM or JOIN clause. Start and End are
// byte offsets of the name within the scanned text.
type TableRef struct {
	Parts []string
	Start int
	End   int
}

// Name joins the unquoted parts with dots.
func (r TableRef) Name() string { return strings.Join(r.Parts, ".") }

type parenKind int

const (
	parenExpr parenKind = iota
	parenQuery
)

// TableRefs returns the tables a query reads from, in order of appearance,
// including duplicates. CTE names, subqueries and table functions are not
// reported.
func TableRefs(sql string, d domain.Dialect) ([]TableRef, error) {
	toks, err := Tokenize(sql, d)
	if err != nil {
		return nil, err
	}
	return scanRefs(significantTokens(toks)), nil
}

// RewriteTableRefs replaces each table reference for which fn returns
// ok=true with the returned text. Everything else is left byte for byte.
func RewriteTableRefs(sql string, d domain.Dialect, fn func(TableRef) (string, bool)) (string, error) {
	refs, err := TableRefs(sql, d)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	last := 0
	for _, ref := range refs {
		repl, ok := fn(ref)
		if !ok {
			continue
		}
		b.WriteString(sql[last:ref.Start])
		b.WriteString(repl)
		last = ref.End
	}
	b.WriteString(sql[last:])
	return b.String(), nil
}

// FormatName renders name parts as a dotted identifier in dialect d,
// quoting parts that are not plain identifiers.
func FormatName(parts []string, d domain.Dialect) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = QuoteIdentifierIfNeeded(p, d)
	}
	return strings.Join(quoted, ".")
}

// StripViewHeader removes a leading "CREATE [OR REPLACE] ... VIEW name AS"
// header and any trailing semicolon, returning the query body.
func StripViewHeader(sql string, d domain.Dialect) (string, error) {
	toks, err := Tokenize(sql, d)
	if err != nil {
		return "", err
	}
	sig := significantTokens(toks)
	body := sql
	if len(sig) > 0 && sig[0].IsKeyword("create") {
		depth := 0
		start := -1
		for _, t := range sig[1:] {
			switch {
			case t.IsPunct("("):
				depth++
			case t.IsPunct(")"):
				depth--
			case depth == 0 && t.IsKeyword("as"):
				start = t.Pos + len(t.Raw)
			}
			if start >= 0 {
				break
			}
		}
		if start < 0 {
			return "", fmt.Errorf("view definition has a CREATE header but no AS clause")
		}
		body = sql[start:]
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSpace(strings.TrimSuffix(body, ";"))
	return body, nil
}

func scanRefs(sig []Token) []TableRef {
	ctes := cteNames(sig)
	var refs []TableRef
	var stack []parenKind

	inQueryContext := func() bool {
		return len(stack) == 0 || stack[len(stack)-1] == parenQuery
	}

	for i := 0; i < len(sig); i++ {
		t := sig[i]
		switch {
		case t.IsPunct("("):
			kind := parenExpr
			if i+1 < len(sig) {
				n := sig[i+1]
				if n.IsKeyword("select") || n.IsKeyword("with") || n.IsKeyword("values") || n.IsPunct("(") {
					kind = parenQuery
				}
			}
			stack = append(stack, kind)
		case t.IsPunct(")"):
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case (t.IsKeyword("from") || t.IsKeyword("join")) && inQueryContext():
			if t.IsKeyword("from") && isDistinctFrom(sig, i) {
				continue
			}
			refs = parseFromList(sig, i+1, ctes, refs)
		}
	}
	return refs
}

// parseFromList reads one or more comma-separated table entries starting at j.
func parseFromList(sig []Token, j int, ctes map[string]bool, refs []TableRef) []TableRef {
	for j < len(sig) {
		if sig[j].IsKeyword("lateral") || sig[j].IsKeyword("only") {
			j++
			continue
		}
		if !sig[j].IsName() {
			return refs
		}
		ref, next := readName(sig, j)
		if next < len(sig) && sig[next].IsPunct("(") {
			// Table function, e.g. read_parquet(...).
			return refs
		}
		if !(len(ref.Parts) == 1 && ctes[strings.ToLower(ref.Parts[0])]) {
			refs = append(refs, ref)
		}
		j = skipAlias(sig, next)
		if j < len(sig) && sig[j].IsPunct(",") {
			j++
			continue
		}
		return refs
	}
	return refs
}

func readName(sig []Token, j int) (TableRef, int) {
	ref := TableRef{Start: sig[j].Pos}
	for {
		ref.Parts = append(ref.Parts, sig[j].Value)
		ref.End = sig[j].Pos + len(sig[j].Raw)
		if j+2 < len(sig) && sig[j+1].IsPunct(".") && sig[j+2].IsName() {
			j += 2
			continue
		}
		return ref, j + 1
	}
}

func skipAlias(sig []Token, j int) int {
	if j < len(sig) && sig[j].IsKeyword("as") {
		j++
	}
	if j < len(sig) && sig[j].IsName() && !isReservedAfterTable(sig[j]) {
		j++
	}
	return j
}

// isDistinctFrom reports whether the FROM at i belongs to IS [NOT] DISTINCT FROM.
func isDistinctFrom(sig []Token, i int) bool {
	return i >= 2 && sig[i-1].IsKeyword("distinct") && (sig[i-2].IsKeyword("is") || sig[i-2].IsKeyword("not"))
}

// cteNames collects the names bound by WITH clauses anywhere in the query.
func cteNames(sig []Token) map[string]bool {
	names := map[string]bool{}
	for i := 0; i < len(sig); i++ {
		if !sig[i].IsKeyword("with") {
			continue
		}
		j := i + 1
		if j < len(sig) && sig[j].IsKeyword("recursive") {
			j++
		}
		for j < len(sig) && sig[j].IsName() {
			name := strings.ToLower(sig[j].Value)
			j++
			if j < len(sig) && sig[j].IsPunct("(") {
				j = skipBalanced(sig, j)
			}
			if j >= len(sig) || !sig[j].IsKeyword("as") {
				break
			}
			names[name] = true
			j++
			for j < len(sig) && (sig[j].IsKeyword("not") || sig[j].IsKeyword("materialized")) {
				j++
			}
			if j >= len(sig) || !sig[j].IsPunct("(") {
				break
			}
			j = skipBalanced(sig, j)
			if j < len(sig) && sig[j].IsPunct(",") {
				j++
				continue
			}
			break
		}
	}
	return names
}

// skipBalanced returns the index just past the parenthesis group opening at j.
func skipBalanced(sig []Token, j int) int {
	depth := 0
	for ; j < len(sig); j++ {
		switch {
		case sig[j].IsPunct("("):
			depth++
		case sig[j].IsPunct(")"):
			depth--
			if depth == 0 {
				return j + 1
			}
		}
	}
	return j
}
