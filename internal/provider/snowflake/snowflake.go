// Package snowflake implements the Snowflake provider. As a target it creates
// Delta external tables over external stages and externally managed iceberg
// tables over external volumes; as a source it reads tables and views through
// the Snowflake system functions.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	sf "github.com/snowflakedb/gosnowflake"

	"bricksync/internal/domain"
	"bricksync/internal/provider/props"
)

// Querier runs statements on a Snowflake session. Column names in returned
// rows are lower-cased.
type Querier interface {
	Exec(ctx context.Context, stmt string) error
	Query(ctx context.Context, stmt string) ([]Row, error)
	Close() error
}

// Row is one result row keyed by lower-cased column name.
type Row map[string]string

// Config holds connection settings. Account and User are required.
type Config struct {
	Account       string
	User          string
	Password      string
	Token         string
	Authenticator string
	Warehouse     string
	Database      string
	Schema        string
	Role          string
	LoginTimeout  time.Duration

	// Optional overrides for discovery.
	ExternalStage      string
	ExternalVolume     string
	CatalogIntegration string
}

// ConfigFromProperties reads a Config from provider properties.
func ConfigFromProperties(name string, p props.Props) (Config, error) {
	if err := p.Require(name, "account", "user"); err != nil {
		return Config{}, err
	}
	timeout, err := p.Duration(name, "login_timeout", 60*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Account:            p.Get("account", ""),
		User:               p.Get("user", ""),
		Password:           p.Get("password", ""),
		Token:              p.Get("token", ""),
		Authenticator:      strings.ToLower(p.Get("authenticator", "")),
		Warehouse:          p.Get("warehouse", ""),
		Database:           p.Get("database", ""),
		Schema:             p.Get("schema", ""),
		Role:               p.Get("role", ""),
		LoginTimeout:       timeout,
		ExternalStage:      p.Get("external_stage", ""),
		ExternalVolume:     p.Get("external_volume", ""),
		CatalogIntegration: p.Get("catalog_integration", ""),
	}
	if _, err := authType(cfg.Authenticator); err != nil {
		return Config{}, domain.ErrConfig("provider %s: %v", name, err)
	}
	return cfg, nil
}

func authType(s string) (sf.AuthType, error) {
	switch s {
	case "", "snowflake":
		return sf.AuthTypeSnowflake, nil
	case "oauth":
		return sf.AuthTypeOAuth, nil
	case "externalbrowser":
		return sf.AuthTypeExternalBrowser, nil
	default:
		return 0, fmt.Errorf("unsupported authenticator %q", s)
	}
}

// DSN renders the gosnowflake connection string. Every session sets
// QUOTED_IDENTIFIERS_IGNORE_CASE so quoted names resolve like unquoted ones.
func (c Config) DSN() (string, error) {
	auth, err := authType(c.Authenticator)
	if err != nil {
		return "", err
	}
	ignoreCase := "TRUE"
	return sf.DSN(&sf.Config{
		Account:       c.Account,
		User:          c.User,
		Password:      c.Password,
		Token:         c.Token,
		Authenticator: auth,
		Warehouse:     c.Warehouse,
		Database:      c.Database,
		Schema:        c.Schema,
		Role:          c.Role,
		LoginTimeout:  c.LoginTimeout,
		Params:        map[string]*string{"QUOTED_IDENTIFIERS_IGNORE_CASE": &ignoreCase},
	})
}

// Deps holds dependencies for Provider. Querier is opened from Config on
// Connect when nil.
type Deps struct {
	Querier Querier
	Logger  *slog.Logger
}

// Provider is a Snowflake account used as a source or a target.
type Provider struct {
	name   string
	config Config
	q      Querier
	logger *slog.Logger

	mu            sync.Mutex
	volumes       []volumeLocation
	volumesLoaded bool
	stages        []stage
	stagesLoaded  bool
	integration   string
}

var (
	_ domain.Provider      = (*Provider)(nil)
	_ domain.TargetCatalog = (*Provider)(nil)
	_ domain.CatalogReader = (*Provider)(nil)
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
		q:      deps.Querier,
		logger: logger.With("component", "snowflake", "provider", name),
	}
}

func (p *Provider) Name() string              { return p.name }
func (p *Provider) Kind() domain.ProviderKind { return domain.ProviderSnowflake }
func (p *Provider) Dialect() domain.Dialect   { return domain.DialectSnowflake }

// Connect opens the connection pool and verifies the login.
func (p *Provider) Connect(ctx context.Context) error {
	if p.q == nil {
		dsn, err := p.config.DSN()
		if err != nil {
			return domain.ErrConfig("provider %s: %v", p.name, err)
		}
		db, err := sql.Open("snowflake", dsn)
		if err != nil {
			return fmt.Errorf("open snowflake connection for %s: %w", p.name, err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return fmt.Errorf("authenticate with Snowflake for %s: %w", p.name, err)
		}
		p.q = &sqlQuerier{db: db}
	}
	p.logger.Info("connected", "account", p.config.Account, "warehouse", p.config.Warehouse)
	return nil
}

// Close releases the connection pool.
func (p *Provider) Close() error {
	if p.q == nil {
		return nil
	}
	return p.q.Close()
}

func (p *Provider) exec(ctx context.Context, stmt string) error {
	p.logger.Debug("executing statement", "sql", stmt)
	if err := p.q.Exec(ctx, stmt); err != nil {
		return mapError(err)
	}
	return nil
}

func (p *Provider) query(ctx context.Context, stmt string) ([]Row, error) {
	p.logger.Debug("running query", "sql", stmt)
	rows, err := p.q.Query(ctx, stmt)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

const uuidMismatch = "does not match the table uuid in metadata file"

// mapError translates Snowflake error messages into domain errors.
func mapError(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, uuidMismatch):
		return &domain.StalePointerError{Message: msg}
	case strings.Contains(lower, "does not exist"):
		return domain.ErrNotFound("%s", msg)
	case strings.Contains(lower, "already exists"):
		return domain.ErrConflict("%s", msg)
	default:
		return fmt.Errorf("snowflake: %w", err)
	}
}

// sqlQuerier is a Querier over database/sql and gosnowflake.
type sqlQuerier struct {
	db *sql.DB
}

func (s *sqlQuerier) Exec(ctx context.Context, stmt string) error {
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *sqlQuerier) Query(ctx context.Context, stmt string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[strings.ToLower(c)] = vals[i].String
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *sqlQuerier) Close() error { return s.db.Close() }
