package snowflake

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bricksync/internal/ddl"
	"bricksync/internal/domain"
)

// SupportsFormat accepts Delta (external tables) and iceberg.
func (p *Provider) SupportsFormat(format domain.TableFormat) bool {
	return format == domain.FormatDelta || format == domain.FormatIceberg
}

// TableStatements renders the statements for ident. Delta tables become
// external tables over the matching stage and are refreshed after create;
// iceberg tables are bound to a metadata file on the matching external
// volume.
func (p *Provider) TableStatements(ctx context.Context, ident domain.FQTN, table *domain.TableSource) (domain.TableStatements, error) {
	switch table.Format {
	case domain.FormatDelta:
		if table.StorageLocation == "" {
			return domain.TableStatements{}, domain.ErrValidation("table %s has no storage location", table.Ident)
		}
		st, err := p.externalStage(ctx, table.StorageLocation)
		if err != nil {
			return domain.TableStatements{}, err
		}
		loc, err := ddl.SnowflakeStageLocation(table.StorageLocation, st.URL, st.Name)
		if err != nil {
			return domain.TableStatements{}, err
		}
		create, err := ddl.SnowflakeExternalDeltaTable(ident, loc, table.PartitionKeys)
		if err != nil {
			return domain.TableStatements{}, err
		}
		return domain.TableStatements{
			Create:             create,
			Replace:            create,
			Refresh:            ddl.SnowflakeRefreshExternalTable(ident),
			RefreshAfterCreate: true,
		}, nil

	case domain.FormatIceberg:
		metadata := table.MetadataLocation()
		if metadata == "" {
			return domain.TableStatements{}, domain.ErrValidation("table %s has no iceberg metadata location", table.Ident)
		}
		match := table.StorageLocation
		if match == "" {
			match = metadata
		}
		vol, err := p.externalVolume(ctx, match)
		if err != nil {
			return domain.TableStatements{}, err
		}
		path, err := ddl.SnowflakeMetadataFilePath(metadata, vol.BaseURL)
		if err != nil {
			return domain.TableStatements{}, err
		}
		catalog, err := p.catalogIntegration(ctx)
		if err != nil {
			return domain.TableStatements{}, err
		}
		create, err := ddl.SnowflakeIcebergTable(ident, vol.Volume, catalog, path, false)
		if err != nil {
			return domain.TableStatements{}, err
		}
		replace, err := ddl.SnowflakeIcebergTable(ident, vol.Volume, catalog, path, true)
		if err != nil {
			return domain.TableStatements{}, err
		}
		return domain.TableStatements{
			Create:  create,
			Replace: replace,
			Refresh: ddl.SnowflakeRefreshIcebergTable(ident, path),
		}, nil

	default:
		return domain.TableStatements{}, &domain.UnsupportedFormatError{Name: table.Ident.String(), Format: table.Format, Target: p.name}
	}
}

// ViewStatement renders CREATE OR REPLACE VIEW ... COPY GRANTS.
func (p *Provider) ViewStatement(ident domain.FQTN, body string) (string, error) {
	return ddl.SnowflakeView(ident, body)
}

// DescribeObject returns the kind of the object as SHOW OBJECTS reports it.
// LIKE treats _ and % as wildcards, so rows are matched on the exact name.
func (p *Provider) DescribeObject(ctx context.Context, name domain.FQTN) (string, error) {
	stmt := fmt.Sprintf("SHOW OBJECTS LIKE %s IN SCHEMA %s",
		ddl.QuoteLiteral(name.Table), schemaName(name))
	rows, err := p.query(ctx, stmt)
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		if strings.EqualFold(row["name"], name.Table) {
			return row["kind"], nil
		}
	}
	return "", domain.ErrNotFound("object %s does not exist", name)
}

func schemaName(name domain.FQTN) string {
	if name.Catalog == "" {
		return ddl.QuoteIdentifier(name.Schema)
	}
	return ddl.QuoteIdentifier(name.Catalog) + "." + ddl.QuoteIdentifier(name.Schema)
}

// CreateNamespace creates the database if it does not exist.
func (p *Provider) CreateNamespace(ctx context.Context, catalog string) error {
	stmt, err := ddl.SnowflakeCreateDatabase(catalog)
	if err != nil {
		return domain.ErrValidation("%v", err)
	}
	return p.exec(ctx, stmt)
}

// CreateSchema creates the schema if it does not exist.
func (p *Provider) CreateSchema(ctx context.Context, catalog, schema string) error {
	stmt, err := ddl.SnowflakeCreateSchema(catalog, schema)
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

// ExecuteRefresh runs t.RefreshStatement. An iceberg table created from a
// since-replaced source fails with a uuid mismatch, reported as a
// *domain.StalePointerError.
func (p *Provider) ExecuteRefresh(ctx context.Context, t *domain.Target) error {
	return p.run(ctx, t, t.RefreshStatement)
}

func (p *Provider) run(ctx context.Context, t *domain.Target, stmt string) error {
	if stmt == "" {
		return domain.ErrValidation("no statement planned for %s", t.Ident)
	}
	err := p.exec(ctx, stmt)
	var stale *domain.StalePointerError
	if errors.As(err, &stale) {
		stale.Name = t.Ident.String()
	}
	return err
}
