// Package duckdb implements a target provider that exposes synced tables as
// DuckDB views over delta_scan, iceberg_scan and read_parquet. Each target
// catalog is an attached database.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // registers the duckdb driver

	"bricksync/internal/ddl"
	"bricksync/internal/domain"
	"bricksync/internal/provider/props"
)

// Config holds database and storage credential settings.
type Config struct {
	// Path is the main database file; empty means in-memory.
	Path string
	// DatabaseDir holds one file per attached catalog; empty attaches
	// in-memory databases.
	DatabaseDir string
	// Extensions are installed and loaded on Connect.
	Extensions []string

	S3                    ddl.S3SecretOptions
	AzureAccountName      string
	AzureAccountKey       string
	AzureConnectionString string
	GCSKeyID              string
	GCSSecret             string
}

// ConfigFromProperties reads a Config from provider properties.
func ConfigFromProperties(name string, p props.Props) (Config, error) {
	install, err := p.Bool(name, "install_extensions", true)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Path:        p.Get("path", ""),
		DatabaseDir: p.Get("database_dir", ""),
		S3: ddl.S3SecretOptions{
			KeyID:    p.Get("s3_key_id", ""),
			Secret:   p.Get("s3_secret", ""),
			Endpoint: p.Get("s3_endpoint", ""),
			Region:   p.Get("s3_region", ""),
			URLStyle: p.Get("s3_url_style", ""),
		},
		AzureAccountName:      p.Get("azure_account_name", ""),
		AzureAccountKey:       p.Get("azure_account_key", ""),
		AzureConnectionString: p.Get("azure_connection_string", ""),
		GCSKeyID:              p.Get("gcs_key_id", ""),
		GCSSecret:             p.Get("gcs_secret", ""),
	}
	if install {
		cfg.Extensions = ddl.DuckDBExtensions
	}
	if cfg.DatabaseDir == "" && cfg.Path != "" {
		cfg.DatabaseDir = filepath.Dir(cfg.Path)
	}
	return cfg, nil
}

// Deps holds dependencies for Provider. DB is opened from Config on Connect
// when nil.
type Deps struct {
	DB     *sql.DB
	Logger *slog.Logger
}

// Provider is a DuckDB target.
type Provider struct {
	name   string
	config Config
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ domain.Provider      = (*Provider)(nil)
	_ domain.TargetCatalog = (*Provider)(nil)
)

// New creates a Provider.
func New(name string, cfg Config, deps Deps) *Provider {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		name:   name,
		config: cfg,
		db:     deps.DB,
		logger: logger.With("component", "duckdb", "provider", name),
	}
}

func (p *Provider) Name() string              { return p.name }
func (p *Provider) Kind() domain.ProviderKind { return domain.ProviderDuckDB }
func (p *Provider) Dialect() domain.Dialect   { return domain.DialectDuckDB }

// Connect opens the database, loads extensions and creates storage secrets.
func (p *Provider) Connect(ctx context.Context) error {
	if p.db == nil {
		db, err := sql.Open("duckdb", p.config.Path)
		if err != nil {
			return fmt.Errorf("open duckdb %q: %w", p.config.Path, err)
		}
		p.db = db
	}
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("open duckdb %q: %w", p.config.Path, err)
	}
	for _, ext := range p.config.Extensions {
		stmt, err := ddl.InstallExtension(ext)
		if err != nil {
			return domain.ErrConfig("provider %s: %v", p.name, err)
		}
		if err := p.exec(ctx, stmt); err != nil {
			return fmt.Errorf("load extension %s: %w", ext, err)
		}
	}
	stmts, err := p.secretStatements()
	if err != nil {
		return domain.ErrConfig("provider %s: %v", p.name, err)
	}
	for _, stmt := range stmts {
		if err := p.exec(ctx, stmt); err != nil {
			return fmt.Errorf("create storage secret: %w", err)
		}
	}
	p.logger.Info("connected", "path", p.config.Path, "secrets", len(stmts))
	return nil
}

func (p *Provider) secretStatements() ([]string, error) {
	var stmts []string
	s3 := p.config.S3
	if s3.KeyID != "" || s3.Region != "" || s3.Endpoint != "" {
		stmt, err := ddl.CreateS3Secret("bricksync_s3", s3)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	if p.config.AzureAccountName != "" || p.config.AzureConnectionString != "" {
		stmt, err := ddl.CreateAzureSecret("bricksync_azure", p.config.AzureAccountName, p.config.AzureAccountKey, p.config.AzureConnectionString)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	if p.config.GCSKeyID != "" {
		stmt, err := ddl.CreateGCSSecret("bricksync_gcs", p.config.GCSKeyID, p.config.GCSSecret)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// Close closes the database.
func (p *Provider) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

// SupportsFormat accepts formats DuckDB has a scan function for.
func (p *Provider) SupportsFormat(format domain.TableFormat) bool {
	switch format {
	case domain.FormatDelta, domain.FormatIceberg, domain.FormatParquet:
		return true
	default:
		return false
	}
}

// TableStatements renders a scan view. Refreshing re-creates the view, which
// re-pins iceberg tables to the current metadata file.
func (p *Provider) TableStatements(_ context.Context, ident domain.FQTN, table *domain.TableSource) (domain.TableStatements, error) {
	location := table.StorageLocation
	if table.Format == domain.FormatIceberg {
		location = table.MetadataLocation()
	}
	stmt, err := ddl.DuckDBScanView(ident, table.Format, location)
	if err != nil {
		return domain.TableStatements{}, domain.ErrValidation("table %s: %v", table.Ident, err)
	}
	return domain.TableStatements{Create: stmt, Replace: stmt, Refresh: stmt}, nil
}

// ViewStatement renders CREATE OR REPLACE VIEW.
func (p *Provider) ViewStatement(ident domain.FQTN, body string) (string, error) {
	return ddl.DuckDBView(ident, body)
}

// DescribeObject returns the information_schema table type of name.
func (p *Provider) DescribeObject(ctx context.Context, name domain.FQTN) (string, error) {
	q := `SELECT table_type FROM information_schema.tables
		WHERE table_catalog = current_database() AND table_schema = ? AND table_name = ?`
	args := []any{name.Schema, name.Table}
	if name.Catalog != "" {
		q = `SELECT table_type FROM information_schema.tables
		WHERE table_catalog = ? AND table_schema = ? AND table_name = ?`
		args = append([]any{name.Catalog}, args...)
	}
	var tableType string
	err := p.db.QueryRowContext(ctx, q, args...).Scan(&tableType)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound("object %s does not exist", name)
	}
	if err != nil {
		return "", fmt.Errorf("describe %s: %w", name, err)
	}
	return tableType, nil
}

// CreateNamespace attaches a database for catalog unless one is already
// attached under that name.
func (p *Provider) CreateNamespace(ctx context.Context, catalog string) error {
	var n int
	if err := p.db.QueryRowContext(ctx,
		"SELECT count(*) FROM duckdb_databases() WHERE database_name = ?", catalog).Scan(&n); err != nil {
		return fmt.Errorf("list databases: %w", err)
	}
	if n > 0 {
		return nil
	}
	path := ":memory:"
	if p.config.DatabaseDir != "" {
		path = filepath.Join(p.config.DatabaseDir, catalog+".duckdb")
	}
	stmt, err := ddl.AttachDatabase(catalog, path)
	if err != nil {
		return domain.ErrValidation("%v", err)
	}
	return p.exec(ctx, stmt)
}

// CreateSchema creates the schema if it does not exist.
func (p *Provider) CreateSchema(ctx context.Context, catalog, schema string) error {
	stmt, err := ddl.DuckDBCreateSchema(catalog, schema)
	if err != nil {
		return domain.ErrValidation("%v", err)
	}
	return p.exec(ctx, stmt)
}

// ExecuteDDL runs t.DDL.
func (p *Provider) ExecuteDDL(ctx context.Context, t *domain.Target) error {
	return p.run(ctx, t, t.DDL)
}

// ExecuteReplace runs t.ReplaceDDL.
func (p *Provider) ExecuteReplace(ctx context.Context, t *domain.Target) error {
	return p.run(ctx, t, t.ReplaceDDL)
}

// ExecuteRefresh runs t.RefreshStatement.
func (p *Provider) ExecuteRefresh(ctx context.Context, t *domain.Target) error {
	return p.run(ctx, t, t.RefreshStatement)
}

func (p *Provider) run(ctx context.Context, t *domain.Target, stmt string) error {
	if stmt == "" {
		return domain.ErrValidation("no statement planned for %s", t.Ident)
	}
	return p.exec(ctx, stmt)
}

func (p *Provider) exec(ctx context.Context, stmt string) error {
	p.logger.Debug("executing statement", "sql", stmt)
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return mapError(err)
	}
	return nil
}

func mapError(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "does not exist"):
		return domain.ErrNotFound("%s", msg)
	case strings.Contains(lower, "already exists"):
		return domain.ErrConflict("%s", msg)
	default:
		return fmt.Errorf("duckdb: %w", err)
	}
}
