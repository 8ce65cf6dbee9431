package domain

import (
	"context"
	"time"
)

// ProviderKind names a catalog provider implementation.
type ProviderKind string

// Provider kinds.
const (
	ProviderDatabricks  ProviderKind = "databricks"
	ProviderSnowflake   ProviderKind = "snowflake"
	ProviderGlue        ProviderKind = "glue"
	ProviderIcebergREST ProviderKind = "iceberg_rest"
	ProviderDuckDB      ProviderKind = "duckdb"
)

// Provider is a named catalog connection. Construction is cheap; Connect
// performs authentication and session setup and must be called before any
// capability method.
type Provider interface {
	Name() string
	Kind() ProviderKind
	Connect(ctx context.Context) error
	Close() error
}

// CatalogReader reads object metadata from a source catalog.
// Implemented by unity.Provider and snowflake.Provider.
type CatalogReader interface {
	GetObjectMetadata(ctx context.Context, name FQTN) (*ObjectMetadata, error)
	ObjectExists(ctx context.Context, name FQTN) (bool, error)
	ListSchemas(ctx context.Context, catalog string) ([]string, error)
	ListTables(ctx context.Context, catalog, schema string) ([]FQTN, error)
}

// UniformReader reports the iceberg projection of a Delta table.
// It returns (nil, nil) when the table has no projection.
type UniformReader interface {
	GetUniformMetadata(ctx context.Context, name FQTN) (*UniformMetadata, error)
}

// ProjectionGenerator exposes the primary-format version of a table and can
// trigger asynchronous regeneration of its iceberg projection.
// Implemented by unity.Provider.
type ProjectionGenerator interface {
	UniformReader
	LatestVersion(ctx context.Context, name FQTN) (int64, error)
	TriggerProjection(ctx context.Context, name FQTN) error
}

// StatementBuilder renders target-specific statements.
type StatementBuilder interface {
	SupportsFormat(format TableFormat) bool
	TableStatements(ctx context.Context, ident FQTN, table *TableSource) (TableStatements, error)
	ViewStatement(ident FQTN, body string) (string, error)
}

// TargetCatalog is the write side of a target provider. DescribeObject
// returns a *NotFoundError when the object does not exist. CreateNamespace
// and CreateSchema return a *ConflictError when the object already exists.
type TargetCatalog interface {
	StatementBuilder
	Dialect() Dialect
	DescribeObject(ctx context.Context, name FQTN) (string, error)
	CreateNamespace(ctx context.Context, catalog string) error
	CreateSchema(ctx context.Context, catalog, schema string) error
	ExecuteDDL(ctx context.Context, t *Target) error
	ExecuteReplace(ctx context.Context, t *Target) error
	ExecuteRefresh(ctx context.Context, t *Target) error
}

// DialectConverter translates view bodies between SQL dialects.
// Implemented by sqldialect.Converter.
type DialectConverter interface {
	Convert(sql string, from, to Dialect) (string, error)
}

// RunRecorder persists run progress.
// Implemented by repository.RunRepo.
type RunRecorder interface {
	StartRun(ctx context.Context, id string, startedAt time.Time) error
	RecordResult(ctx context.Context, runID string, position int, r SyncResult) error
	FinishRun(ctx context.Context, run RunRecord) error
}

// RunHistory reads persisted runs.
// Implemented by repository.RunRepo.
type RunHistory interface {
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListResults(ctx context.Context, runID string) ([]SyncResult, error)
}
