package source

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"bricksync/internal/domain"
)

const informationSchema = "information_schema"

// Unpack expands a source scope into the tables and views it names. A table
// scope yields itself, a schema scope its objects, a catalog scope the objects
// of every schema except information_schema. The result is sorted.
func Unpack(ctx context.Context, reader domain.CatalogReader, scope domain.Scope) ([]domain.FQTN, error) {
	if name, ok := scope.FQTN(); ok {
		return []domain.FQTN{name}, nil
	}

	var names []domain.FQTN
	if scope.Depth() == 2 {
		tables, err := reader.ListTables(ctx, scope.Catalog, scope.Schema)
		if err != nil {
			return nil, fmt.Errorf("list tables in %s: %w", scope, err)
		}
		names = tables
	} else {
		schemas, err := reader.ListSchemas(ctx, scope.Catalog)
		if err != nil {
			return nil, fmt.Errorf("list schemas in %s: %w", scope, err)
		}
		for _, schema := range schemas {
			if strings.EqualFold(schema, informationSchema) {
				continue
			}
			tables, err := reader.ListTables(ctx, scope.Catalog, schema)
			if err != nil {
				return nil, fmt.Errorf("list tables in %s.%s: %w", scope.Catalog, schema, err)
			}
			names = append(names, tables...)
		}
	}

	sort.Slice(names, func(i, j int) bool {
		return names[i].String() < names[j].String()
	})
	return names, nil
}
