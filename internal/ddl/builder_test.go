package ddl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bricksync/internal/domain"
)

func TestDatabricksCreateSchema(t *testing.T) {
	tests := []struct {
		name    string
		catalog string
		schema  string
		want    string
		wantErr string
	}{
		{name: "valid", catalog: "main", schema: "sales", want: "CREATE SCHEMA IF NOT EXISTS `main`.`sales`"},
		{name: "no_catalog", schema: "sales", want: "CREATE SCHEMA IF NOT EXISTS `sales`"},
		{name: "empty_schema", catalog: "main", wantErr: "invalid schema name"},
		{name: "invalid_catalog", catalog: "my-cat", schema: "sales", wantErr: "invalid catalog name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DatabricksCreateSchema(tt.catalog, tt.schema)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDatabricksTables(t *testing.T) {
	name := domain.MustParseFQTN("main.sales.orders")

	got, err := DatabricksDeltaTable(name, "s3://x/y")
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS `main`.`sales`.`orders` USING DELTA LOCATION 's3://x/y'", got)

	got, err = DatabricksUniformTable(name, "s3://x/y/metadata/v1.metadata.json")
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS `main`.`sales`.`orders` UNIFORM iceberg METADATA_PATH 's3://x/y/metadata/v1.metadata.json'", got)

	assert.Equal(t, "REFRESH TABLE `main`.`sales`.`orders`", DatabricksRefreshTable(name, ""))
	assert.Equal(t, "REFRESH TABLE `main`.`sales`.`orders` METADATA_PATH 'p.json'", DatabricksRefreshTable(name, "p.json"))
	assert.Equal(t, "DESCRIBE HISTORY `main`.`sales`.`orders` LIMIT 1", DatabricksDescribeHistory(name))
	assert.Equal(t, "MSCK REPAIR TABLE `main`.`sales`.`orders` SYNC METADATA", DatabricksSyncUniformMetadata(name))

	_, err = DatabricksDeltaTable(name, "")
	require.Error(t, err)
}

func TestValidateIdentifier(t *testing.T) {
	require.NoError(t, ValidateIdentifier("orders_2024"))
	require.NoError(t, ValidateIdentifier("_x$1"))
	require.Error(t, ValidateIdentifier(""))
	require.Error(t, ValidateIdentifier("1abc"))
	require.Error(t, ValidateIdentifier("a-b"))

	require.NoError(t, ValidateName(domain.MustParseFQTN("a.b.c")))
	require.Error(t, ValidateName(domain.FQTN{Catalog: "a", Schema: "b c", Table: "d"}))
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, `"a""b"`, QuoteIdentifier(`a"b`))
	assert.Equal(t, "`a``b`", QuoteBacktick("a`b"))
	assert.Equal(t, `'it''s'`, QuoteLiteral("it's"))
	assert.Equal(t, `"s"."t"`, QualifiedName(domain.MustParseFQTN("s.t")))
}

func TestRelativePath(t *testing.T) {
	got, err := RelativePath("s3://b/w/t/meta.json", "s3://b/w")
	require.NoError(t, err)
	assert.Equal(t, "t/meta.json", got)

	got, err = RelativePath("s3://b/w", "s3://b/w/")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = RelativePath("s3://b/wx/t", "s3://b/w")
	require.Error(t, err)

	_, err = RelativePath("s3://b/w/t", "")
	require.Error(t, err)
}
