// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase. This follows the Go convention of a
// shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bricksync/internal/domain"
)

// === Catalog Reader Mock ===

// MockCatalogReader implements domain.CatalogReader for testing.
type MockCatalogReader struct {
	GetObjectMetadataFn func(ctx context.Context, name domain.FQTN) (*domain.ObjectMetadata, error)
	ObjectExistsFn      func(ctx context.Context, name domain.FQTN) (bool, error)
	ListSchemasFn       func(ctx context.Context, catalog string) ([]string, error)
	ListTablesFn        func(ctx context.Context, catalog, schema string) ([]domain.FQTN, error)
}

// GetObjectMetadata implements the interface method for testing.
func (m *MockCatalogReader) GetObjectMetadata(ctx context.Context, name domain.FQTN) (*domain.ObjectMetadata, error) {
	if m.GetObjectMetadataFn != nil {
		return m.GetObjectMetadataFn(ctx, name)
	}
	panic("unexpected call to MockCatalogReader.GetObjectMetadata")
}

// ObjectExists implements the interface method for testing.
func (m *MockCatalogReader) ObjectExists(ctx context.Context, name domain.FQTN) (bool, error) {
	if m.ObjectExistsFn != nil {
		return m.ObjectExistsFn(ctx, name)
	}
	panic("unexpected call to MockCatalogReader.ObjectExists")
}

// ListSchemas implements the interface method for testing.
func (m *MockCatalogReader) ListSchemas(ctx context.Context, catalog string) ([]string, error) {
	if m.ListSchemasFn != nil {
		return m.ListSchemasFn(ctx, catalog)
	}
	panic("unexpected call to MockCatalogReader.ListSchemas")
}

// ListTables implements the interface method for testing.
func (m *MockCatalogReader) ListTables(ctx context.Context, catalog, schema string) ([]domain.FQTN, error) {
	if m.ListTablesFn != nil {
		return m.ListTablesFn(ctx, catalog, schema)
	}
	panic("unexpected call to MockCatalogReader.ListTables")
}

// === In-memory catalog ===

// MemCatalog is a map-backed domain.CatalogReader. Lookups are
// case-insensitive. Lookups counts GetObjectMetadata calls per name.
type MemCatalog struct {
	mu      sync.Mutex
	objects map[string]*domain.ObjectMetadata
	Lookups map[string]int
}

// NewMemCatalog builds a MemCatalog holding objs.
func NewMemCatalog(objs ...*domain.ObjectMetadata) *MemCatalog {
	c := &MemCatalog{
		objects: make(map[string]*domain.ObjectMetadata),
		Lookups: make(map[string]int),
	}
	for _, o := range objs {
		c.Put(o)
	}
	return c
}

// Put adds or replaces an object.
func (c *MemCatalog) Put(o *domain.ObjectMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[strings.ToLower(o.Name.String())] = o
}

// GetObjectMetadata implements domain.CatalogReader.
func (c *MemCatalog) GetObjectMetadata(_ context.Context, name domain.FQTN) (*domain.ObjectMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := strings.ToLower(name.String())
	c.Lookups[k]++
	o, ok := c.objects[k]
	if !ok {
		return nil, domain.ErrNotFound("object %s not found", name)
	}
	return o, nil
}

// ObjectExists implements domain.CatalogReader.
func (c *MemCatalog) ObjectExists(_ context.Context, name domain.FQTN) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.objects[strings.ToLower(name.String())]
	return ok, nil
}

// ListSchemas implements domain.CatalogReader.
func (c *MemCatalog) ListSchemas(_ context.Context, catalog string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, o := range c.objects {
		if strings.EqualFold(o.Name.Catalog, catalog) && !seen[o.Name.Schema] {
			seen[o.Name.Schema] = true
			out = append(out, o.Name.Schema)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ListTables implements domain.CatalogReader.
func (c *MemCatalog) ListTables(_ context.Context, catalog, schema string) ([]domain.FQTN, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.FQTN
	for _, o := range c.objects {
		if strings.EqualFold(o.Name.Catalog, catalog) && strings.EqualFold(o.Name.Schema, schema) {
			out = append(out, o.Name)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// === Projection Generator Mock ===

// MockProjectionGenerator implements domain.ProjectionGenerator for testing.
type MockProjectionGenerator struct {
	GetUniformMetadataFn func(ctx context.Context, name domain.FQTN) (*domain.UniformMetadata, error)
	LatestVersionFn      func(ctx context.Context, name domain.FQTN) (int64, error)
	TriggerProjectionFn  func(ctx context.Context, name domain.FQTN) error
}

// GetUniformMetadata implements the interface method for testing.
func (m *MockProjectionGenerator) GetUniformMetadata(ctx context.Context, name domain.FQTN) (*domain.UniformMetadata, error) {
	if m.GetUniformMetadataFn != nil {
		return m.GetUniformMetadataFn(ctx, name)
	}
	panic("unexpected call to MockProjectionGenerator.GetUniformMetadata")
}

// LatestVersion implements the interface method for testing.
func (m *MockProjectionGenerator) LatestVersion(ctx context.Context, name domain.FQTN) (int64, error) {
	if m.LatestVersionFn != nil {
		return m.LatestVersionFn(ctx, name)
	}
	panic("unexpected call to MockProjectionGenerator.LatestVersion")
}

// TriggerProjection implements the interface method for testing.
func (m *MockProjectionGenerator) TriggerProjection(ctx context.Context, name domain.FQTN) error {
	if m.TriggerProjectionFn != nil {
		return m.TriggerProjectionFn(ctx, name)
	}
	panic("unexpected call to MockProjectionGenerator.TriggerProjection")
}

// === Target Catalog Mock ===

// MockTargetCatalog implements domain.TargetCatalog for testing. Every
// call that mutates the target is appended to Calls as "Method(arg)".
// Methods without a function field succeed, except DescribeObject which
// reports NotFound and the statement builders which panic.
type MockTargetCatalog struct {
	DialectValue      domain.Dialect
	SupportsFormatFn  func(f domain.TableFormat) bool
	TableStatementsFn func(ctx context.Context, ident domain.FQTN, t *domain.TableSource) (domain.TableStatements, error)
	ViewStatementFn   func(ident domain.FQTN, body string) (string, error)
	DescribeObjectFn  func(ctx context.Context, name domain.FQTN) (string, error)
	CreateNamespaceFn func(ctx context.Context, catalog string) error
	CreateSchemaFn    func(ctx context.Context, catalog, schema string) error
	ExecuteDDLFn      func(ctx context.Context, t *domain.Target) error
	ExecuteReplaceFn  func(ctx context.Context, t *domain.Target) error
	ExecuteRefreshFn  func(ctx context.Context, t *domain.Target) error

	mu    sync.Mutex
	Calls []string
}

func (m *MockTargetCatalog) record(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, fmt.Sprintf(format, args...))
}

// CallLog returns a copy of the recorded calls.
func (m *MockTargetCatalog) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}

// Dialect implements the interface method for testing.
func (m *MockTargetCatalog) Dialect() domain.Dialect {
	if m.DialectValue == "" {
		return domain.DialectSnowflake
	}
	return m.DialectValue
}

// SupportsFormat implements the interface method for testing.
func (m *MockTargetCatalog) SupportsFormat(f domain.TableFormat) bool {
	if m.SupportsFormatFn != nil {
		return m.SupportsFormatFn(f)
	}
	return f == domain.FormatDelta || f == domain.FormatIceberg
}

// TableStatements implements the interface method for testing.
func (m *MockTargetCatalog) TableStatements(ctx context.Context, ident domain.FQTN, t *domain.TableSource) (domain.TableStatements, error) {
	if m.TableStatementsFn != nil {
		return m.TableStatementsFn(ctx, ident, t)
	}
	panic("unexpected call to MockTargetCatalog.TableStatements")
}

// ViewStatement implements the interface method for testing.
func (m *MockTargetCatalog) ViewStatement(ident domain.FQTN, body string) (string, error) {
	if m.ViewStatementFn != nil {
		return m.ViewStatementFn(ident, body)
	}
	panic("unexpected call to MockTargetCatalog.ViewStatement")
}

// DescribeObject implements the interface method for testing.
func (m *MockTargetCatalog) DescribeObject(ctx context.Context, name domain.FQTN) (string, error) {
	if m.DescribeObjectFn != nil {
		return m.DescribeObjectFn(ctx, name)
	}
	return "", domain.ErrNotFound("object %s does not exist", name)
}

// CreateNamespace implements the interface method for testing.
func (m *MockTargetCatalog) CreateNamespace(ctx context.Context, catalog string) error {
	m.record("CreateNamespace(%s)", catalog)
	if m.CreateNamespaceFn != nil {
		return m.CreateNamespaceFn(ctx, catalog)
	}
	return nil
}

// CreateSchema implements the interface method for testing.
func (m *MockTargetCatalog) CreateSchema(ctx context.Context, catalog, schema string) error {
	m.record("CreateSchema(%s,%s)", catalog, schema)
	if m.CreateSchemaFn != nil {
		return m.CreateSchemaFn(ctx, catalog, schema)
	}
	return nil
}

// ExecuteDDL implements the interface method for testing.
func (m *MockTargetCatalog) ExecuteDDL(ctx context.Context, t *domain.Target) error {
	m.record("ExecuteDDL(%s)", t.Ident)
	if m.ExecuteDDLFn != nil {
		return m.ExecuteDDLFn(ctx, t)
	}
	return nil
}

// ExecuteReplace implements the interface method for testing.
func (m *MockTargetCatalog) ExecuteReplace(ctx context.Context, t *domain.Target) error {
	m.record("ExecuteReplace(%s)", t.Ident)
	if m.ExecuteReplaceFn != nil {
		return m.ExecuteReplaceFn(ctx, t)
	}
	return nil
}

// ExecuteRefresh implements the interface method for testing.
func (m *MockTargetCatalog) ExecuteRefresh(ctx context.Context, t *domain.Target) error {
	m.record("ExecuteRefresh(%s)", t.Ident)
	if m.ExecuteRefreshFn != nil {
		return m.ExecuteRefreshFn(ctx, t)
	}
	return nil
}

// === Dialect Converter Mock ===

// MockDialectConverter implements domain.DialectConverter for testing.
type MockDialectConverter struct {
	ConvertFn func(sql string, from, to domain.Dialect) (string, error)
}

// Convert implements the interface method for testing. Without ConvertFn
// the input is returned unchanged.
func (m *MockDialectConverter) Convert(sql string, from, to domain.Dialect) (string, error) {
	if m.ConvertFn != nil {
		return m.ConvertFn(sql, from, to)
	}
	return sql, nil
}

// === Run Recorder Mock ===

// MockRunRecorder implements domain.RunRecorder and collects what it is given.
type MockRunRecorder struct {
	StartRunFn     func(ctx context.Context, id string, startedAt time.Time) error
	RecordResultFn func(ctx context.Context, runID string, position int, r domain.SyncResult) error
	FinishRunFn    func(ctx context.Context, run domain.RunRecord) error

	mu       sync.Mutex
	Started  []string
	Results  map[int]domain.SyncResult
	Finished []domain.RunRecord
}

// StartRun implements the interface method for testing.
func (m *MockRunRecorder) StartRun(ctx context.Context, id string, startedAt time.Time) error {
	if m.StartRunFn != nil {
		if err := m.StartRunFn(ctx, id, startedAt); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Started = append(m.Started, id)
	return nil
}

// RecordResult implements the interface method for testing.
func (m *MockRunRecorder) RecordResult(ctx context.Context, runID string, position int, r domain.SyncResult) error {
	if m.RecordResultFn != nil {
		if err := m.RecordResultFn(ctx, runID, position, r); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Results == nil {
		m.Results = make(map[int]domain.SyncResult)
	}
	m.Results[position] = r
	return nil
}

// FinishRun implements the interface method for testing.
func (m *MockRunRecorder) FinishRun(ctx context.Context, run domain.RunRecord) error {
	if m.FinishRunFn != nil {
		if err := m.FinishRunFn(ctx, run); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Finished = append(m.Finished, run)
	return nil
}

// === Fixtures ===

// DeltaTable returns metadata for a UniForm-enabled Delta table.
func DeltaTable(name, location string) *domain.ObjectMetadata {
	return &domain.ObjectMetadata{
		Name:            domain.MustParseFQTN(name),
		Kind:            domain.KindTable,
		Format:          domain.FormatDelta,
		StorageLocation: location,
		Properties:      map[string]string{"delta.enableIcebergCompatV2": "true"},
	}
}

// IcebergTable returns metadata for a native iceberg table.
func IcebergTable(name, location, metadataLocation string) *domain.ObjectMetadata {
	return &domain.ObjectMetadata{
		Name:                    domain.MustParseFQTN(name),
		Kind:                    domain.KindTable,
		Format:                  domain.FormatIceberg,
		StorageLocation:         location,
		IcebergMetadataLocation: metadataLocation,
	}
}

// View returns metadata for a view with declared dependencies.
func View(name, definition string, deps ...string) *domain.ObjectMetadata {
	md := &domain.ObjectMetadata{
		Name:           domain.MustParseFQTN(name),
		Kind:           domain.KindView,
		ViewDefinition: definition,
	}
	for _, d := range deps {
		md.DeclaredDependencies = append(md.DeclaredDependencies, domain.MustParseFQTN(d))
	}
	return md
}

// Compile-time interface checks.
var (
	_ domain.CatalogReader       = (*MockCatalogReader)(nil)
	_ domain.CatalogReader       = (*MemCatalog)(nil)
	_ domain.ProjectionGenerator = (*MockProjectionGenerator)(nil)
	_ domain.TargetCatalog       = (*MockTargetCatalog)(nil)
	_ domain.DialectConverter    = (*MockDialectConverter)(nil)
	_ domain.RunRecorder         = (*MockRunRecorder)(nil)
)
