package snowflake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"bricksync/internal/ddl"
	"bricksync/internal/domain"
)

// icebergInformation is the JSON returned by
// SYSTEM$GET_ICEBERG_TABLE_INFORMATION.
type icebergInformation struct {
	MetadataLocation string `json:"metadataLocation"`
	Status           string `json:"status"`
}

// GetObjectMetadata reads a table or view. Views carry their full GET_DDL
// text; iceberg tables carry their current metadata file. Other tables are
// reported with FormatOther.
func (p *Provider) GetObjectMetadata(ctx context.Context, name domain.FQTN) (*domain.ObjectMetadata, error) {
	kind, err := p.objectKind(ctx, name)
	if err != nil {
		return nil, err
	}
	lit := ddl.QuoteLiteral(name.String())
	if kind == domain.KindView {
		rows, err := p.query(ctx, fmt.Sprintf("SELECT GET_DDL('VIEW', %s, true) AS view_ddl", lit))
		if err != nil {
			return nil, fmt.Errorf("get view definition of %s: %w", name, err)
		}
		if len(rows) == 0 {
			return nil, domain.ErrNotFound("view %s has no definition", name)
		}
		return &domain.ObjectMetadata{
			Name:           name,
			Kind:           domain.KindView,
			ViewDefinition: rows[0]["view_ddl"],
		}, nil
	}

	md := &domain.ObjectMetadata{Name: name, Kind: domain.KindTable, Format: domain.FormatOther}
	rows, err := p.query(ctx, fmt.Sprintf("SELECT SYSTEM$GET_ICEBERG_TABLE_INFORMATION(%s) AS iceberg_info", lit))
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, err
		}
		p.logger.Debug("table is not an iceberg table", "table", name.String(), "error", err)
		return md, nil
	}
	if len(rows) == 0 {
		return md, nil
	}
	var info icebergInformation
	if err := json.Unmarshal([]byte(rows[0]["iceberg_info"]), &info); err != nil {
		return nil, fmt.Errorf("parse iceberg information of %s: %w", name, err)
	}
	if info.MetadataLocation == "" {
		return md, nil
	}
	md.Format = domain.FormatIceberg
	md.IcebergMetadataLocation = info.MetadataLocation
	md.StorageLocation = storageRoot(info.MetadataLocation)
	return md, nil
}

// storageRoot strips the metadata directory from a metadata file location.
func storageRoot(metadataLocation string) string {
	if i := strings.LastIndex(metadataLocation, "/metadata/"); i >= 0 {
		return metadataLocation[:i]
	}
	return metadataLocation
}

// objectKind asks SYSTEM$REFERENCE for a view, then a table.
func (p *Provider) objectKind(ctx context.Context, name domain.FQTN) (domain.ObjectKind, error) {
	lit := ddl.QuoteLiteral(name.String())
	if _, err := p.query(ctx, fmt.Sprintf("SELECT SYSTEM$REFERENCE('VIEW', %s)", lit)); err == nil {
		return domain.KindView, nil
	}
	_, err := p.query(ctx, fmt.Sprintf("SELECT SYSTEM$REFERENCE('TABLE', %s)", lit))
	if err == nil {
		return domain.KindTable, nil
	}
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return "", domain.ErrNotFound("object %s not found", name)
	}
	return "", fmt.Errorf("look up %s: %w", name, err)
}

// ObjectExists reports whether name is a table or view.
func (p *Provider) ObjectExists(ctx context.Context, name domain.FQTN) (bool, error) {
	_, err := p.objectKind(ctx, name)
	if err == nil {
		return true, nil
	}
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, err
}

// ListSchemas lists the schemas of a database.
func (p *Provider) ListSchemas(ctx context.Context, catalog string) ([]string, error) {
	rows, err := p.query(ctx, "SHOW SCHEMAS IN DATABASE "+ddl.QuoteIdentifier(catalog))
	if err != nil {
		return nil, fmt.Errorf("list schemas of %s: %w", catalog, err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r["name"])
	}
	return out, nil
}

// ListTables lists the tables and views of a schema.
func (p *Provider) ListTables(ctx context.Context, catalog, schema string) ([]domain.FQTN, error) {
	rows, err := p.query(ctx, "SHOW OBJECTS IN SCHEMA "+schemaName(domain.FQTN{Catalog: catalog, Schema: schema}))
	if err != nil {
		return nil, fmt.Errorf("list objects of %s.%s: %w", catalog, schema, err)
	}
	out := make([]domain.FQTN, 0, len(rows))
	for _, r := range rows {
		switch strings.ToUpper(r["kind"]) {
		case "TABLE", "VIEW":
			out = append(out, domain.FQTN{Catalog: catalog, Schema: schema, Table: r["name"]})
		}
	}
	return out, nil
}
