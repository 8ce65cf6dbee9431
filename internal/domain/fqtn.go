package domain

import "strings"

// FQTN is a fully-qualified table name: [catalog.]schema.table.
// Catalog is empty for 2-part names.
type FQTN struct {
	Catalog string
	Schema  string
	Table   string
}

// ParseFQTN splits a 2- or 3-part dotted identifier. Parsing is reversible:
// ParseFQTN(s).String() == s for every accepted input.
func ParseFQTN(s string) (FQTN, error) {
	parts := strings.Split(s, ".")
	for _, p := range parts {
		if p == "" {
			return FQTN{}, ErrValidation("invalid table name %q: empty identifier part", s)
		}
	}
	switch len(parts) {
	case 2:
		return FQTN{Schema: parts[0], Table: parts[1]}, nil
	case 3:
		return FQTN{Catalog: parts[0], Schema: parts[1], Table: parts[2]}, nil
	default:
		return FQTN{}, ErrValidation("invalid table name %q: expected [catalog.]schema.table", s)
	}
}

// MustParseFQTN is like ParseFQTN but panics on error. Intended for tests
// and constants.
func MustParseFQTN(s string) FQTN {
	n, err := ParseFQTN(s)
	if err != nil {
		panic(err)
	}
	return n
}

// String joins the parts with dots.
func (n FQTN) String() string {
	return strings.Join(n.Parts(), ".")
}

// Parts returns the non-empty parts in order.
func (n FQTN) Parts() []string {
	if n.Catalog == "" {
		return []string{n.Schema, n.Table}
	}
	return []string{n.Catalog, n.Schema, n.Table}
}

// HasCatalog reports whether this is a 3-part name.
func (n FQTN) HasCatalog() bool { return n.Catalog != "" }

// CatalogPart returns the catalog of a 3-part name. ok is false for 2-part names.
func (n FQTN) CatalogPart() (catalog string, ok bool) {
	return n.Catalog, n.Catalog != ""
}

// IsZero reports whether n is the zero value.
func (n FQTN) IsZero() bool { return n == FQTN{} }

// WithParts returns a name with the given parts. When every part equals the
// current value the receiver itself is returned.
func (n FQTN) WithParts(catalog, schema, table string) FQTN {
	if catalog == n.Catalog && schema == n.Schema && table == n.Table {
		return n
	}
	return FQTN{Catalog: catalog, Schema: schema, Table: table}
}

// WithCatalog replaces the catalog part.
func (n FQTN) WithCatalog(catalog string) FQTN { return n.WithParts(catalog, n.Schema, n.Table) }

// WithSchema replaces the schema part.
func (n FQTN) WithSchema(schema string) FQTN { return n.WithParts(n.Catalog, schema, n.Table) }

// WithTable replaces the table part.
func (n FQTN) WithTable(table string) FQTN { return n.WithParts(n.Catalog, n.Schema, table) }

// EqualFold compares two names case-insensitively, the way most catalogs
// resolve unquoted identifiers.
func (n FQTN) EqualFold(o FQTN) bool {
	return strings.EqualFold(n.Catalog, o.Catalog) &&
		strings.EqualFold(n.Schema, o.Schema) &&
		strings.EqualFold(n.Table, o.Table)
}

// Scope is a source identifier of one to three parts: a catalog, a schema
// within a catalog, or a single table.
type Scope struct {
	Catalog string
	Schema  string
	Table   string
}

// ParseScope parses a 1-, 2- or 3-part dotted identifier.
func ParseScope(s string) (Scope, error) {
	parts := strings.Split(s, ".")
	for _, p := range parts {
		if p == "" {
			return Scope{}, ErrValidation("invalid source identifier %q: empty identifier part", s)
		}
	}
	switch len(parts) {
	case 1:
		return Scope{Catalog: parts[0]}, nil
	case 2:
		return Scope{Catalog: parts[0], Schema: parts[1]}, nil
	case 3:
		return Scope{Catalog: parts[0], Schema: parts[1], Table: parts[2]}, nil
	default:
		return Scope{}, ErrValidation("invalid source identifier %q: expected catalog[.schema[.table]]", s)
	}
}

// Depth returns the number of parts.
func (s Scope) Depth() int {
	switch {
	case s.Table != "":
		return 3
	case s.Schema != "":
		return 2
	default:
		return 1
	}
}

// FQTN returns the table name of a 3-part scope.
func (s Scope) FQTN() (FQTN, bool) {
	if s.Depth() != 3 {
		return FQTN{}, false
	}
	return FQTN{Catalog: s.Catalog, Schema: s.Schema, Table: s.Table}, true
}

func (s Scope) String() string {
	switch s.Depth() {
	case 3:
		return s.Catalog + "." + s.Schema + "." + s.Table
	case 2:
		return s.Catalog + "." + s.Schema
	default:
		return s.Catalog
	}
}
