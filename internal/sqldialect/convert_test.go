package sqldialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bricksync/internal/domain"
)

func TestConverter_Convert(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		from    domain.Dialect
		to      domain.Dialect
		want    string
		wantErr string
	}{
		{
			name: "same_family_untouched",
			sql:  "select `a` from b.c.d",
			from: domain.DialectDatabricks,
			to:   domain.DialectSpark,
			want: "select `a` from b.c.d",
		},
		{
			name: "backticks_to_double_quotes",
			sql:  "SELECT `order id`, amount FROM main.sales.orders",
			from: domain.DialectDatabricks,
			to:   domain.DialectSnowflake,
			want: `SELECT "order id", amount FROM main.sales.orders`,
		},
		{
			name: "spark_double_quoted_string",
			sql:  `SELECT * FROM t WHERE region = "EU"`,
			from: domain.DialectDatabricks,
			to:   domain.DialectSnowflake,
			want: `SELECT * FROM t WHERE region = 'EU'`,
		},
		{
			name: "spark_backslash_escape",
			sql:  `SELECT 'it\'s' AS s`,
			from: domain.DialectDatabricks,
			to:   domain.DialectDuckDB,
			want: `SELECT 'it''s' AS s`,
		},
		{
			name: "function_rename_preserves_upper_case",
			sql:  "SELECT COLLECT_LIST(x), size(y) FROM t",
			from: domain.DialectDatabricks,
			to:   domain.DialectSnowflake,
			want: "SELECT ARRAY_AGG(x), array_size(y) FROM t",
		},
		{
			name: "column_named_like_function_not_renamed",
			sql:  "SELECT size FROM t",
			from: domain.DialectDatabricks,
			to:   domain.DialectSnowflake,
			want: "SELECT size FROM t",
		},
		{
			name: "snowflake_to_databricks",
			sql:  `SELECT IFF(a > 1, 'x', 'y') AS "Flag" FROM db.s.t`,
			from: domain.DialectSnowflake,
			to:   domain.DialectDatabricks,
			want: "SELECT IF(a > 1, 'x', 'y') AS `Flag` FROM db.s.t",
		},
		{
			name: "string_with_quote_to_spark",
			sql:  `SELECT 'it''s'`,
			from: domain.DialectSnowflake,
			to:   domain.DialectDatabricks,
			want: `SELECT 'it\'s'`,
		},
		{
			name:    "lateral_view_rejected",
			sql:     "SELECT c FROM t LATERAL VIEW explode(arr) AS c",
			from:    domain.DialectDatabricks,
			to:      domain.DialectSnowflake,
			wantErr: "lateral view",
		},
		{
			name:    "explode_rejected",
			sql:     "SELECT explode(arr) FROM t",
			from:    domain.DialectDatabricks,
			to:      domain.DialectSnowflake,
			wantErr: "no snowflake equivalent",
		},
		{
			name:    "json_path_to_duckdb_rejected",
			sql:     "SELECT payload:customer FROM t",
			from:    domain.DialectDatabricks,
			to:      domain.DialectDuckDB,
			wantErr: "path operator",
		},
		{
			name:    "unterminated_input",
			sql:     "SELECT 'x FROM t",
			from:    domain.DialectSnowflake,
			to:      domain.DialectDuckDB,
			wantErr: "unterminated",
		},
		{
			name:    "unknown_dialect",
			sql:     "SELECT 1",
			from:    domain.Dialect("oracle"),
			to:      domain.DialectDuckDB,
			wantErr: "unsupported dialect",
		},
	}

	conv := NewConverter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := conv.Convert(tt.sql, tt.from, tt.to)
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

func TestQuoteIdentifierIfNeeded(t *testing.T) {
	assert.Equal(t, "orders", QuoteIdentifierIfNeeded("orders", domain.DialectSnowflake))
	assert.Equal(t, `"my table"`, QuoteIdentifierIfNeeded("my table", domain.DialectSnowflake))
	assert.Equal(t, "`my table`", QuoteIdentifierIfNeeded("my table", domain.DialectDatabricks))
	assert.Equal(t, `"a""b"`, QuoteIdentifier(`a"b`, domain.DialectDuckDB))
}
