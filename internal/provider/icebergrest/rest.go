// Package icebergrest implements a target provider for Iceberg REST
// catalogs (Polaris, Lakekeeper, Nessie, Tabular). Tables are registered by
// metadata file; the catalog part of a name is ignored and the schema maps to
// a single-level namespace.
package icebergrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bricksync/internal/domain"
	"bricksync/internal/objstore"
	"bricksync/internal/provider/props"
)

// Config holds connection settings for a REST catalog.
type Config struct {
	// URI is the catalog root, e.g. https://polaris.example.com/api/catalog.
	URI string
	// Warehouse is sent to /v1/config and used as the path prefix unless the
	// server overrides it.
	Warehouse string
	Token     string
	Timeout   time.Duration
}

// ConfigFromProperties reads a Config from provider properties.
func ConfigFromProperties(name string, p props.Props) (Config, error) {
	if err := p.Require(name, "uri"); err != nil {
		return Config{}, err
	}
	timeout, err := p.Duration(name, "timeout", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	return Config{
		URI:       strings.TrimRight(p.Get("uri", ""), "/"),
		Warehouse: p.Get("warehouse", ""),
		Token:     p.Get("token", ""),
		Timeout:   timeout,
	}, nil
}

// Deps holds dependencies for Provider.
type Deps struct {
	// Metadata reads iceberg metadata files to compare table UUIDs.
	Metadata objstore.Reader
	Logger   *slog.Logger
}

// Provider is an Iceberg REST catalog target.
type Provider struct {
	name   string
	config Config
	client *http.Client
	meta   objstore.Reader
	logger *slog.Logger
	prefix string
}

var (
	_ domain.Provider      = (*Provider)(nil)
	_ domain.TargetCatalog = (*Provider)(nil)
)

// New creates a Provider. No request is made until Connect.
func New(name string, cfg Config, deps Deps) *Provider {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Provider{
		name:   name,
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		meta:   deps.Metadata,
		logger: logger.With("component", "iceberg-rest", "provider", name),
		prefix: cfg.Warehouse,
	}
}

func (p *Provider) Name() string              { return p.name }
func (p *Provider) Kind() domain.ProviderKind { return domain.ProviderIcebergREST }

// Dialect reports spark, the dialect engines reading these catalogs share.
func (p *Provider) Dialect() domain.Dialect { return domain.DialectSpark }

// Connect fetches /v1/config, which validates the token and yields the
// server's path prefix.
func (p *Provider) Connect(ctx context.Context) error {
	u := p.config.URI + "/v1/config"
	if p.config.Warehouse != "" {
		u += "?warehouse=" + url.QueryEscape(p.config.Warehouse)
	}
	resp, err := p.doRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("connect to iceberg catalog %s: %w", p.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("connect to iceberg catalog %s: %w", p.name, p.parseError(resp))
	}
	var cfg configResponse
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return fmt.Errorf("decode catalog config: %w", err)
	}
	if prefix := cfg.Overrides["prefix"]; prefix != "" {
		p.prefix = prefix
	} else if prefix := cfg.Defaults["prefix"]; prefix != "" {
		p.prefix = prefix
	}
	p.logger.Debug("connected", "prefix", p.prefix)
	return nil
}

// Close releases idle connections.
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// SupportsFormat reports true for iceberg only.
func (p *Provider) SupportsFormat(format domain.TableFormat) bool {
	return format == domain.FormatIceberg
}

// TableStatements renders descriptive statements for the register, replace
// and refresh operations.
func (p *Provider) TableStatements(_ context.Context, ident domain.FQTN, table *domain.TableSource) (domain.TableStatements, error) {
	loc := table.MetadataLocation()
	if loc == "" {
		return domain.TableStatements{}, fmt.Errorf("table %s has no iceberg metadata location", table.Ident)
	}
	name := ident.Schema + "." + ident.Table
	return domain.TableStatements{
		Create:  fmt.Sprintf("REGISTER TABLE %s METADATA_LOCATION '%s'", name, loc),
		Replace: fmt.Sprintf("DROP TABLE %s; REGISTER TABLE %s METADATA_LOCATION '%s'", name, name, loc),
		Refresh: fmt.Sprintf("REFRESH TABLE %s METADATA_LOCATION '%s'", name, loc),
	}, nil
}

// ViewStatement fails: view sync to REST catalogs is not supported.
func (p *Provider) ViewStatement(ident domain.FQTN, _ string) (string, error) {
	return "", domain.ErrValidation("iceberg REST catalog %s does not support views (%s)", p.name, ident)
}

// DescribeObject returns the table's current metadata location.
func (p *Provider) DescribeObject(ctx context.Context, name domain.FQTN) (string, error) {
	t, err := p.loadTable(ctx, name)
	if err != nil {
		return "", err
	}
	return t.MetadataLocation, nil
}

// CreateNamespace is a no-op; REST namespaces map to schemas.
func (p *Provider) CreateNamespace(context.Context, string) error { return nil }

// CreateSchema creates the namespace for schema.
func (p *Provider) CreateSchema(ctx context.Context, _, schema string) error {
	body := namespaceRequest{Namespace: []string{schema}}
	resp, err := p.doRequest(ctx, http.MethodPost, p.url("namespaces"), body)
	if err != nil {
		return fmt.Errorf("create namespace request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		p.logger.Info("namespace created", "namespace", schema)
		return nil
	case http.StatusConflict:
		return domain.ErrConflict("namespace %s already exists", schema)
	default:
		return p.parseError(resp)
	}
}

// ExecuteDDL registers the table at its metadata location.
func (p *Provider) ExecuteDDL(ctx context.Context, t *domain.Target) error {
	p.logger.Debug("executing", "statement", t.DDL)
	ts, ok := t.Table()
	if !ok {
		return fmt.Errorf("register %s: not a table", t.Ident)
	}
	return p.register(ctx, t.Ident, ts.MetadataLocation(), false)
}

// ExecuteReplace points the existing catalog entry at the source's metadata
// file, keeping the old files.
func (p *Provider) ExecuteReplace(ctx context.Context, t *domain.Target) error {
	p.logger.Debug("executing", "statement", t.ReplaceDDL)
	previous := ""
	if current, err := p.loadTable(ctx, t.Ident); err == nil {
		previous = current.MetadataLocation
	}
	return p.swap(ctx, t, previous)
}

// ExecuteRefresh points the table at the source's current metadata file.
// It is a no-op when the location is unchanged, and returns a
// *domain.StalePointerError when the new file belongs to a different table.
func (p *Provider) ExecuteRefresh(ctx context.Context, t *domain.Target) error {
	ts, ok := t.Table()
	if !ok {
		return fmt.Errorf("refresh %s: not a table", t.Ident)
	}
	next := ts.MetadataLocation()
	current, err := p.loadTable(ctx, t.Ident)
	if err != nil {
		return err
	}
	if current.MetadataLocation == next {
		p.logger.Debug("metadata location unchanged", "table", t.Ident.String())
		return nil
	}
	if p.meta != nil && current.Metadata.TableUUID != "" {
		md, err := objstore.ReadIcebergMetadata(ctx, p.meta, next)
		if err != nil {
			return fmt.Errorf("read metadata for %s: %w", t.Ident, err)
		}
		if !strings.EqualFold(md.TableUUID, current.Metadata.TableUUID) {
			return domain.ErrStalePointer(t.Ident.String(),
				"table uuid %s does not match the table uuid in metadata file (%s)", current.Metadata.TableUUID, md.TableUUID)
		}
	}
	p.logger.Debug("executing", "statement", t.RefreshStatement)
	return p.swap(ctx, t, current.MetadataLocation)
}

// swap re-registers an existing table with overwrite. Catalogs that refuse
// the overwrite with 409 get a drop and a plain register instead; if that
// register fails, the previous metadata location is registered again.
func (p *Provider) swap(ctx context.Context, t *domain.Target, previous string) error {
	ts, ok := t.Table()
	if !ok {
		return fmt.Errorf("register %s: not a table", t.Ident)
	}
	next := ts.MetadataLocation()
	err := p.register(ctx, t.Ident, next, true)
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		return err
	}
	p.logger.Debug("overwrite refused, dropping before register", "table", t.Ident.String())
	if err := p.drop(ctx, t.Ident); err != nil {
		return err
	}
	regErr := p.register(ctx, t.Ident, next, false)
	if regErr == nil || previous == "" {
		return regErr
	}
	if err := p.register(ctx, t.Ident, previous, false); err != nil {
		p.logger.Error("table dropped and not registered again",
			"table", t.Ident.String(), "metadata_location", previous, "error", err)
		return fmt.Errorf("register %s: %w (restoring %s failed: %v)", t.Ident, regErr, previous, err)
	}
	p.logger.Warn("register failed, previous metadata location restored",
		"table", t.Ident.String(), "metadata_location", previous, "error", regErr)
	return regErr
}

func (p *Provider) register(ctx context.Context, ident domain.FQTN, location string, overwrite bool) error {
	body := registerRequest{Name: ident.Table, MetadataLocation: location, Overwrite: overwrite}
	resp, err := p.doRequest(ctx, http.MethodPost, p.url("namespaces", ident.Schema, "register"), body)
	if err != nil {
		return fmt.Errorf("register table request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		p.logger.Info("table registered", "table", ident.String(), "metadata_location", location)
		return nil
	case http.StatusConflict:
		return domain.ErrConflict("table %s already exists", ident)
	case http.StatusNotFound:
		return domain.ErrNotFound("namespace %s not found", ident.Schema)
	default:
		return p.parseError(resp)
	}
}

func (p *Provider) drop(ctx context.Context, name domain.FQTN) error {
	u := p.url("namespaces", name.Schema, "tables", name.Table) + "?purgeRequested=false"
	resp, err := p.doRequest(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("drop table request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return p.parseError(resp)
	}
}

func (p *Provider) loadTable(ctx context.Context, name domain.FQTN) (*loadTableResponse, error) {
	resp, err := p.doRequest(ctx, http.MethodGet, p.url("namespaces", name.Schema, "tables", name.Table), nil)
	if err != nil {
		return nil, fmt.Errorf("load table request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound("table %s not found", name)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, p.parseError(resp)
	}
	var out loadTableResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode load table response: %w", err)
	}
	return &out, nil
}

// url joins escaped path segments under /v1/{prefix}.
func (p *Provider) url(segments ...string) string {
	var b strings.Builder
	b.WriteString(p.config.URI)
	b.WriteString("/v1")
	if p.prefix != "" {
		b.WriteString("/")
		b.WriteString(url.PathEscape(p.prefix))
	}
	for _, s := range segments {
		b.WriteString("/")
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// doRequest performs an HTTP request with the given method, URL, and body.
func (p *Provider) doRequest(ctx context.Context, method, url string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if p.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.Token)
	}

	return p.client.Do(req)
}

// parseError parses an error response from the REST API.
func (p *Provider) parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("catalog error (status %d): failed to read response body", resp.StatusCode)
	}
	var e errorResponse
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		return fmt.Errorf("catalog error (status %d): %s: %s", resp.StatusCode, e.Error.Type, e.Error.Message)
	}
	return fmt.Errorf("catalog error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// REST API request/response types

type configResponse struct {
	Defaults  map[string]string `json:"defaults"`
	Overrides map[string]string `json:"overrides"`
}

type namespaceRequest struct {
	Namespace  []string          `json:"namespace"`
	Properties map[string]string `json:"properties,omitempty"`
}

type registerRequest struct {
	Name             string `json:"name"`
	MetadataLocation string `json:"metadata-location"`
	Overwrite        bool   `json:"overwrite,omitempty"`
}

type loadTableResponse struct {
	MetadataLocation string `json:"metadata-location"`
	Metadata         struct {
		TableUUID string `json:"table-uuid"`
		Location  string `json:"location"`
	} `json:"metadata"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}
