package unity

import (
	"context"
	"errors"

	"bricksync/internal/ddl"
	"bricksync/internal/domain"
)

// SupportsFormat accepts Delta and iceberg tables.
func (p *Provider) SupportsFormat(format domain.TableFormat) bool {
	return format == domain.FormatDelta || format == domain.FormatIceberg
}

// TableStatements renders CREATE TABLE IF NOT EXISTS over the source's Delta
// location, or over its iceberg metadata file, plus the matching REFRESH.
func (p *Provider) TableStatements(_ context.Context, ident domain.FQTN, table *domain.TableSource) (domain.TableStatements, error) {
	switch table.Format {
	case domain.FormatDelta:
		create, err := ddl.DatabricksDeltaTable(ident, table.StorageLocation)
		if err != nil {
			return domain.TableStatements{}, domain.ErrValidation("table %s: %v", table.Ident, err)
		}
		return domain.TableStatements{
			Create:  create,
			Replace: create,
			Refresh: ddl.DatabricksRefreshTable(ident, ""),
		}, nil
	case domain.FormatIceberg:
		metadata := table.MetadataLocation()
		create, err := ddl.DatabricksUniformTable(ident, metadata)
		if err != nil {
			return domain.TableStatements{}, domain.ErrValidation("table %s: %v", table.Ident, err)
		}
		return domain.TableStatements{
			Create:  create,
			Replace: create,
			Refresh: ddl.DatabricksRefreshTable(ident, metadata),
		}, nil
	default:
		return domain.TableStatements{}, &domain.UnsupportedFormatError{Name: table.Ident.String(), Format: table.Format, Target: p.name}
	}
}

// ViewStatement renders CREATE OR REPLACE VIEW.
func (p *Provider) ViewStatement(ident domain.FQTN, body string) (string, error) {
	return ddl.DatabricksView(ident, body)
}

// DescribeObject returns the Unity Catalog table type of name.
func (p *Provider) DescribeObject(ctx context.Context, name domain.FQTN) (string, error) {
	info, err := p.getTable(ctx, name)
	if err != nil {
		return "", err
	}
	return info.TableType, nil
}

// CreateNamespace creates the catalog if it does not exist.
func (p *Provider) CreateNamespace(ctx context.Context, catalog string) error {
	stmt, err := ddl.DatabricksCreateCatalog(catalog)
	if err != nil {
		return domain.ErrValidation("%v", err)
	}
	_, err = p.execute(ctx, stmt)
	return err
}

// CreateSchema creates the schema if it does not exist.
func (p *Provider) CreateSchema(ctx context.Context, catalog, schema string) error {
	stmt, err := ddl.DatabricksCreateSchema(catalog, schema)
	if err != nil {
		return domain.ErrValidation("%v", err)
	}
	_, err = p.execute(ctx, stmt)
	return err
}

// ExecuteDDL runs t.DDL.
func (p *Provider) ExecuteDDL(ctx context.Context, t *domain.Target) error {
	return p.run(ctx, t, t.DDL)
}

// ExecuteReplace drops a table and recreates it from t.ReplaceDDL. Views are
// replaced in place.
func (p *Provider) ExecuteReplace(ctx context.Context, t *domain.Target) error {
	if t.Kind == domain.KindTable {
		if _, err := p.execute(ctx, "DROP TABLE IF EXISTS "+ddl.SparkQualifiedName(t.Ident)); err != nil {
			return err
		}
	}
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
	_, err := p.execute(ctx, stmt)
	var stale *domain.StalePointerError
	if errors.As(err, &stale) {
		stale.Name = t.Ident.String()
	}
	return err
}

func isNotFound(err error) bool {
	var nf *domain.NotFoundError
	return errors.As(err, &nf)
}
