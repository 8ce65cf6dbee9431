// Package unity implements the Databricks provider over the Unity Catalog
// REST API and the SQL Statement Execution API. It reads tables, views and
// UniForm iceberg projections as a source, and creates tables and views as a
// target.
package unity

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

	"golang.org/x/time/rate"

	"bricksync/internal/domain"
	"bricksync/internal/provider/props"
)

// Config holds workspace settings. Host and Token are required; WarehouseID
// is required for anything that runs SQL.
type Config struct {
	Host              string
	Token             string
	WarehouseID       string
	RequestsPerSecond float64
	Timeout           time.Duration
	PollInterval      time.Duration
}

// ConfigFromProperties reads a Config from provider properties.
func ConfigFromProperties(name string, p props.Props) (Config, error) {
	if err := p.Require(name, "host", "token"); err != nil {
		return Config{}, err
	}
	rps, err := p.Float(name, "requests_per_second", 10)
	if err != nil {
		return Config{}, err
	}
	timeout, err := p.Duration(name, "timeout", 60*time.Second)
	if err != nil {
		return Config{}, err
	}
	poll, err := p.Duration(name, "statement_poll_interval", time.Second)
	if err != nil {
		return Config{}, err
	}
	host := strings.TrimSuffix(p.Get("host", ""), "/")
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return Config{
		Host:              host,
		Token:             p.Get("token", ""),
		WarehouseID:       p.Get("warehouse_id", ""),
		RequestsPerSecond: rps,
		Timeout:           timeout,
		PollInterval:      poll,
	}, nil
}

// Deps holds dependencies for Provider.
type Deps struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Provider is a Databricks workspace.
type Provider struct {
	name    string
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var (
	_ domain.Provider            = (*Provider)(nil)
	_ domain.CatalogReader       = (*Provider)(nil)
	_ domain.ProjectionGenerator = (*Provider)(nil)
	_ domain.TargetCatalog       = (*Provider)(nil)
)

// New creates a Provider.
func New(name string, cfg Config, deps Deps) *Provider {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Provider{
		name:    name,
		config:  cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With("component", "unity", "provider", name),
	}
}

func (p *Provider) Name() string              { return p.name }
func (p *Provider) Kind() domain.ProviderKind { return domain.ProviderDatabricks }
func (p *Provider) Dialect() domain.Dialect   { return domain.DialectDatabricks }

// Connect verifies the token against the workspace metastore assignment.
func (p *Provider) Connect(ctx context.Context) error {
	var out struct {
		MetastoreID string `json:"metastore_id"`
	}
	if err := p.get(ctx, "/api/2.1/unity-catalog/current-metastore-assignment", nil, &out); err != nil {
		return fmt.Errorf("authenticate with Databricks for %s: %w", p.name, err)
	}
	p.logger.Info("connected", "host", p.config.Host, "metastore_id", out.MetastoreID)
	return nil
}

// Close releases idle connections.
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func (p *Provider) get(ctx context.Context, path string, query url.Values, out any) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return p.do(ctx, http.MethodGet, path, nil, out)
}

// do sends one API request, decoding a 2xx JSON body into out.
func (p *Provider) do(ctx context.Context, method, path string, body, out any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.config.Host+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.Token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

type apiError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// parseError maps a Databricks error response onto a domain error.
func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var e apiError
	if json.Unmarshal(body, &e) != nil || e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	msg := fmt.Sprintf("databricks error (status %d): %s", resp.StatusCode, e.Message)
	if e.ErrorCode != "" {
		msg = fmt.Sprintf("databricks error (status %d): %s: %s", resp.StatusCode, e.ErrorCode, e.Message)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound || strings.HasSuffix(e.ErrorCode, "DOES_NOT_EXIST") || strings.HasSuffix(e.ErrorCode, "NOT_FOUND"):
		return domain.ErrNotFound("%s", msg)
	case resp.StatusCode == http.StatusConflict || strings.HasSuffix(e.ErrorCode, "ALREADY_EXISTS"):
		return domain.ErrConflict("%s", msg)
	default:
		return errors.New(msg)
	}
}
