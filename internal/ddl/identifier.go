package ddl

import (
	"fmt"
	"regexp"
	"strings"

	"bricksync/internal/domain"
)

// identifierRe allows alphanumeric + underscores (and $ after the first
// character), starting with a letter or underscore.
var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_$]*$`)

// maxIdentifierLen is the maximum length allowed for a SQL identifier.
const maxIdentifierLen = 255

// ValidateIdentifier checks that name is a plain SQL identifier:
//   - Non-empty
//   - At most 255 characters
//   - Matches [a-zA-Z_][a-zA-Z0-9_$]*
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("name must be at most %d characters", maxIdentifierLen)
	}
	if !identifierRe.MatchString(name) {
		return fmt.Errorf("name must match [a-zA-Z_][a-zA-Z0-9_$]*")
	}
	return nil
}

// ValidateName checks every part of a table name.
func ValidateName(n domain.FQTN) error {
	for _, p := range n.Parts() {
		if err := ValidateIdentifier(p); err != nil {
			return fmt.Errorf("invalid identifier %q in %s: %w", p, n, err)
		}
	}
	return nil
}

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double-quote characters by doubling them (standard SQL).
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteBacktick wraps a Spark SQL identifier in backticks.
func QuoteBacktick(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteLiteral wraps a string value in single quotes, escaping any
// embedded single-quote characters by doubling them (standard SQL).
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// QualifiedName renders n with each part double-quoted.
func QualifiedName(n domain.FQTN) string {
	return joinQuoted(n.Parts(), QuoteIdentifier)
}

// SparkQualifiedName renders n with each part backtick-quoted.
func SparkQualifiedName(n domain.FQTN) string {
	return joinQuoted(n.Parts(), QuoteBacktick)
}

func joinQuoted(parts []string, quote func(string) string) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = quote(p)
	}
	return strings.Join(out, ".")
}

// RelativePath strips base from an absolute storage path. The result has no
// leading slash. It is an error for path not to live under base.
func RelativePath(path, base string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("base location is required")
	}
	trimmedBase := strings.TrimSuffix(base, "/")
	if path != trimmedBase && !strings.HasPrefix(path, trimmedBase+"/") {
		return "", fmt.Errorf("path %s is not under base location %s", path, base)
	}
	return strings.TrimPrefix(strings.TrimPrefix(path, trimmedBase), "/"), nil
}
