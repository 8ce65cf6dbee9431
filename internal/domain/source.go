package domain

import (
	"strings"
	"time"
)

// ObjectKind classifies a catalog object.
type ObjectKind string

// Object kinds.
const (
	KindTable            ObjectKind = "table"
	KindView             ObjectKind = "view"
	KindMaterializedView ObjectKind = "materialized_view"
	KindStreamingTable   ObjectKind = "streaming_table"
)

// IsViewLike reports whether objects of this kind are defined by a query.
func (k ObjectKind) IsViewLike() bool {
	return k == KindView || k == KindMaterializedView || k == KindStreamingTable
}

// TableFormat is the physical storage format of a table.
type TableFormat string

// Table formats.
const (
	FormatDelta   TableFormat = "delta"
	FormatIceberg TableFormat = "iceberg"
	FormatParquet TableFormat = "parquet"
	FormatAvro    TableFormat = "avro"
	FormatOther   TableFormat = "other"
)

// ParseTableFormat maps a provider's format label onto a TableFormat.
// Unknown labels map to FormatOther.
func ParseTableFormat(s string) TableFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "delta":
		return FormatDelta
	case "iceberg":
		return FormatIceberg
	case "parquet":
		return FormatParquet
	case "avro":
		return FormatAvro
	default:
		return FormatOther
	}
}

// Dialect is a SQL dialect spoken by a provider.
type Dialect string

// Dialects.
const (
	DialectDatabricks Dialect = "databricks"
	DialectSpark      Dialect = "spark"
	DialectSnowflake  Dialect = "snowflake"
	DialectDuckDB     Dialect = "duckdb"
)

// ParseDialect validates a dialect name.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(s)); d {
	case DialectDatabricks, DialectSpark, DialectSnowflake, DialectDuckDB:
		return d, nil
	default:
		return "", ErrValidation("unknown SQL dialect %q", s)
	}
}

// FormatPreference is the policy deciding the effective sync format.
type FormatPreference string

// Format preferences.
const (
	PreferMirror  FormatPreference = "mirror"
	PreferIceberg FormatPreference = "iceberg_preferred"
	IcebergOnly   FormatPreference = "iceberg_only"
	PreferDelta   FormatPreference = "delta_preferred"
)

// ParseFormatPreference validates a preference name. "open-preferred" is an
// alias of iceberg_preferred; the empty string means mirror.
func ParseFormatPreference(s string) (FormatPreference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mirror":
		return PreferMirror, nil
	case "iceberg_preferred", "iceberg-preferred", "open-preferred", "open_preferred":
		return PreferIceberg, nil
	case "iceberg_only", "iceberg":
		return IcebergOnly, nil
	case "delta_preferred", "delta-preferred", "delta":
		return PreferDelta, nil
	default:
		return "", ErrValidation("unknown target format preference %q", s)
	}
}

// WantsOpenFormat reports whether the policy favors iceberg metadata.
func (p FormatPreference) WantsOpenFormat() bool {
	return p == PreferIceberg || p == IcebergOnly
}

// UniformMetadata describes an iceberg projection generated from a Delta
// table, and the Delta version it was generated from.
type UniformMetadata struct {
	MetadataLocation   string
	ConvertedVersion   int64
	ConvertedTimestamp time.Time
}

// IsStaleFor reports whether the projection lags the given primary version.
func (u *UniformMetadata) IsStaleFor(version int64) bool {
	return u == nil || u.ConvertedVersion < version
}

// ObjectMetadata is what a CatalogReader reports about one object.
type ObjectMetadata struct {
	Name                    FQTN
	Kind                    ObjectKind
	Format                  TableFormat
	StorageLocation         string
	IcebergMetadataLocation string
	ViewDefinition          string
	DeclaredDependencies    []FQTN
	PartitionKeys           []string
	Properties              map[string]string
}

// Source is a resolved source object.
type Source interface {
	Kind() ObjectKind
	Name() FQTN
	Dialect() Dialect
}

// TableSource is a resolved physical table.
type TableSource struct {
	Ident                   FQTN
	SourceDialect           Dialect
	StorageLocation         string
	NativeFormat            TableFormat
	Format                  TableFormat
	IcebergMetadataLocation string
	PartitionKeys           []string
	Uniform                 *UniformMetadata
	Properties              map[string]string
}

func (t *TableSource) Kind() ObjectKind { return KindTable }
func (t *TableSource) Name() FQTN       { return t.Ident }
func (t *TableSource) Dialect() Dialect { return t.SourceDialect }

// MetadataLocation returns the iceberg metadata file to bind to: the table's
// own metadata for native iceberg tables, otherwise the uniform projection.
func (t *TableSource) MetadataLocation() string {
	if t.IcebergMetadataLocation != "" {
		return t.IcebergMetadataLocation
	}
	if t.Uniform != nil {
		return t.Uniform.MetadataLocation
	}
	return ""
}

// WithUniform returns a copy with refreshed uniform metadata.
func (t *TableSource) WithUniform(u *UniformMetadata) *TableSource {
	cp := *t
	cp.Uniform = u
	return &cp
}

// ViewSource is a resolved view, materialized view, or streaming table.
// BaseTables holds the resolved dependencies in traversal order.
type ViewSource struct {
	Ident         FQTN
	ObjectKind    ObjectKind
	SourceDialect Dialect
	Definition    string
	BaseTables    []Source
	LowConfidence bool
}

func (v *ViewSource) Kind() ObjectKind { return v.ObjectKind }
func (v *ViewSource) Name() FQTN       { return v.Ident }
func (v *ViewSource) Dialect() Dialect { return v.SourceDialect }

// Skip is the benign result of resolving an object that cannot be synced.
type Skip struct {
	Name   FQTN
	Reason string
}

var (
	_ Source = (*TableSource)(nil)
	_ Source = (*ViewSource)(nil)
)
