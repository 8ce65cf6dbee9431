package unity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"bricksync/internal/ddl"
	"bricksync/internal/domain"
)

// tableInfo is the subset of a Unity Catalog TableInfo the provider reads.
type tableInfo struct {
	Name             string            `json:"name"`
	CatalogName      string            `json:"catalog_name"`
	SchemaName       string            `json:"schema_name"`
	FullName         string            `json:"full_name"`
	TableType        string            `json:"table_type"`
	DataSourceFormat string            `json:"data_source_format"`
	StorageLocation  string            `json:"storage_location"`
	ViewDefinition   string            `json:"view_definition"`
	Properties       map[string]string `json:"properties"`
	Columns          []struct {
		Name           string `json:"name"`
		PartitionIndex *int   `json:"partition_index"`
	} `json:"columns"`
	ViewDependencies *struct {
		Dependencies []struct {
			Table *struct {
				TableFullName string `json:"table_full_name"`
			} `json:"table"`
		} `json:"dependencies"`
	} `json:"view_dependencies"`
	DeltaUniformIceberg *struct {
		MetadataLocation        string    `json:"metadata_location"`
		ConvertedDeltaVersion   int64     `json:"converted_delta_version"`
		ConvertedDeltaTimestamp timestamp `json:"converted_delta_timestamp"`
	} `json:"delta_uniform_iceberg"`
}

// timestamp accepts RFC 3339 strings and epoch milliseconds.
type timestamp struct{ time.Time }

func (t *timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.Time = time.UnixMilli(ms).UTC()
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("parse timestamp %s: %w", b, err)
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}

func (p *Provider) getTable(ctx context.Context, name domain.FQTN) (*tableInfo, error) {
	var info tableInfo
	if err := p.get(ctx, "/api/2.1/unity-catalog/tables/"+url.PathEscape(name.String()), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func objectKind(tableType string) domain.ObjectKind {
	switch strings.ToUpper(tableType) {
	case "VIEW":
		return domain.KindView
	case "MATERIALIZED_VIEW":
		return domain.KindMaterializedView
	case "STREAMING_TABLE":
		return domain.KindStreamingTable
	default:
		return domain.KindTable
	}
}

// GetObjectMetadata reads an object from Unity Catalog.
func (p *Provider) GetObjectMetadata(ctx context.Context, name domain.FQTN) (*domain.ObjectMetadata, error) {
	info, err := p.getTable(ctx, name)
	if err != nil {
		return nil, err
	}
	md := &domain.ObjectMetadata{
		Name:            name,
		Kind:            objectKind(info.TableType),
		Format:          domain.ParseTableFormat(info.DataSourceFormat),
		StorageLocation: info.StorageLocation,
		ViewDefinition:  info.ViewDefinition,
		Properties:      info.Properties,
	}
	if md.Format == domain.FormatIceberg {
		md.IcebergMetadataLocation = info.Properties["metadata_location"]
	}
	if info.ViewDependencies != nil {
		for _, d := range info.ViewDependencies.Dependencies {
			if d.Table == nil || d.Table.TableFullName == "" {
				continue
			}
			dep, err := domain.ParseFQTN(d.Table.TableFullName)
			if err != nil {
				p.logger.Warn("ignoring malformed view dependency", "view", name.String(), "dependency", d.Table.TableFullName)
				continue
			}
			md.DeclaredDependencies = append(md.DeclaredDependencies, dep)
		}
	}
	md.PartitionKeys = partitionKeys(info)
	return md, nil
}

func partitionKeys(info *tableInfo) []string {
	type key struct {
		name  string
		index int
	}
	var keys []key
	for _, c := range info.Columns {
		if c.PartitionIndex != nil {
			keys = append(keys, key{c.Name, *c.PartitionIndex})
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].index < keys[j].index })
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.name
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ObjectExists reports whether a table or view exists.
func (p *Provider) ObjectExists(ctx context.Context, name domain.FQTN) (bool, error) {
	var out struct {
		TableExists bool `json:"table_exists"`
	}
	err := p.get(ctx, "/api/2.1/unity-catalog/tables/"+url.PathEscape(name.String())+"/exists", nil, &out)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return out.TableExists, nil
}

// ListSchemas lists the schemas of a catalog across all pages.
func (p *Provider) ListSchemas(ctx context.Context, catalog string) ([]string, error) {
	var names []string
	token := ""
	for {
		q := url.Values{"catalog_name": {catalog}}
		if token != "" {
			q.Set("page_token", token)
		}
		var page struct {
			Schemas []struct {
				Name string `json:"name"`
			} `json:"schemas"`
			NextPageToken string `json:"next_page_token"`
		}
		if err := p.get(ctx, "/api/2.1/unity-catalog/schemas", q, &page); err != nil {
			return nil, fmt.Errorf("list schemas of %s: %w", catalog, err)
		}
		for _, s := range page.Schemas {
			names = append(names, s.Name)
		}
		if page.NextPageToken == "" {
			return names, nil
		}
		token = page.NextPageToken
	}
}

// ListTables lists the tables and views of a schema across all pages.
func (p *Provider) ListTables(ctx context.Context, catalog, schema string) ([]domain.FQTN, error) {
	var names []domain.FQTN
	token := ""
	for {
		q := url.Values{"catalog_name": {catalog}, "schema_name": {schema}, "omit_columns": {"true"}}
		if token != "" {
			q.Set("page_token", token)
		}
		var page struct {
			Tables        []tableInfo `json:"tables"`
			NextPageToken string      `json:"next_page_token"`
		}
		if err := p.get(ctx, "/api/2.1/unity-catalog/tables", q, &page); err != nil {
			return nil, fmt.Errorf("list tables of %s.%s: %w", catalog, schema, err)
		}
		for _, t := range page.Tables {
			names = append(names, domain.FQTN{Catalog: catalog, Schema: schema, Table: t.Name})
		}
		if page.NextPageToken == "" {
			return names, nil
		}
		token = page.NextPageToken
	}
}

// GetUniformMetadata returns the UniForm iceberg projection of a Delta
// table, or nil when the table has none.
func (p *Provider) GetUniformMetadata(ctx context.Context, name domain.FQTN) (*domain.UniformMetadata, error) {
	info, err := p.getTable(ctx, name)
	if err != nil {
		return nil, err
	}
	u := info.DeltaUniformIceberg
	if u == nil || u.MetadataLocation == "" {
		return nil, nil
	}
	return &domain.UniformMetadata{
		MetadataLocation:   u.MetadataLocation,
		ConvertedVersion:   u.ConvertedDeltaVersion,
		ConvertedTimestamp: u.ConvertedDeltaTimestamp.Time,
	}, nil
}

// LatestVersion returns the newest Delta version from DESCRIBE HISTORY.
func (p *Provider) LatestVersion(ctx context.Context, name domain.FQTN) (int64, error) {
	rows, err := p.execute(ctx, ddl.DatabricksDescribeHistory(name))
	if err != nil {
		return 0, fmt.Errorf("describe history of %s: %w", name, err)
	}
	if len(rows) == 0 {
		return 0, domain.ErrNotFound("table %s has no history", name)
	}
	v, err := strconv.ParseInt(rows[0]["version"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version of %s: %w", name, err)
	}
	return v, nil
}

// TriggerProjection asks Databricks to regenerate the iceberg metadata of a
// UniForm table. Regeneration completes asynchronously.
func (p *Provider) TriggerProjection(ctx context.Context, name domain.FQTN) error {
	if _, err := p.execute(ctx, ddl.DatabricksSyncUniformMetadata(name)); err != nil {
		return fmt.Errorf("sync uniform metadata of %s: %w", name, err)
	}
	return nil
}
