package sqldialect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bricksync/internal/domain"
)

func refNames(refs []TableRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Name())
	}
	return out
}

func TestTableRefs(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "simple",
			sql:  "SELECT * FROM main.sales.orders",
			want: []string{"main.sales.orders"},
		},
		{
			name: "joins_and_aliases",
			sql:  "SELECT o.id FROM a.b.c1 AS o JOIN a.b.c2 p ON o.id = p.id LEFT JOIN a.b.c3 USING (id)",
			want: []string{"a.b.c1", "a.b.c2", "a.b.c3"},
		},
		{
			name: "comma_join",
			sql:  "SELECT * FROM s.t1 x, s.t2 y WHERE x.id = y.id",
			want: []string{"s.t1", "s.t2"},
		},
		{
			name: "cte_names_excluded",
			sql:  "WITH recent AS (SELECT * FROM s.orders WHERE d > 1), big AS (SELECT * FROM recent) SELECT * FROM big JOIN s.customers c ON true",
			want: []string{"s.orders", "s.customers"},
		},
		{
			name: "subquery_and_in",
			sql:  "SELECT * FROM (SELECT id FROM s.inner_t) q WHERE id IN (SELECT id FROM s.other)",
			want: []string{"s.inner_t", "s.other"},
		},
		{
			name: "extract_from_ignored",
			sql:  "SELECT EXTRACT(YEAR FROM created_at), TRIM(BOTH 'x' FROM name) FROM s.t",
			want: []string{"s.t"},
		},
		{
			name: "table_function_ignored",
			sql:  "SELECT * FROM read_parquet('s3://x/*.parquet') JOIN s.dim d ON true",
			want: []string{"s.dim"},
		},
		{
			name: "is_distinct_from_ignored",
			sql:  "SELECT * FROM s.t WHERE a IS NOT DISTINCT FROM b",
			want: []string{"s.t"},
		},
		{
			name: "quoted_parts",
			sql:  `SELECT * FROM "My DB"."Sales"."Orders"`,
			want: []string{"My DB.Sales.Orders"},
		},
		{
			name: "no_tables",
			sql:  "SELECT 1",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs, err := TableRefs(tt.sql, domain.DialectSnowflake)
			require.NoError(t, err)
			assert.Equal(t, tt.want, refNames(refs))
		})
	}
}

func TestRewriteTableRefs(t *testing.T) {
	sql := "SELECT * FROM a.b.c1 x JOIN a.b.c2 ON x.id = c2.id -- keep\nWHERE 1 = 1"
	got, err := RewriteTableRefs(sql, domain.DialectSnowflake, func(r TableRef) (string, bool) {
		if r.Name() == "a.b.c2" {
			return `"Analytics".b.c2`, true
		}
		return "", false
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM a.b.c1 x JOIN \"Analytics\".b.c2 ON x.id = c2.id -- keep\nWHERE 1 = 1", got)
}

func TestFormatName(t *testing.T) {
	assert.Equal(t, `db."my schema".t`, FormatName([]string{"db", "my schema", "t"}, domain.DialectSnowflake))
	assert.Equal(t, "db.`my schema`.t", FormatName([]string{"db", "my schema", "t"}, domain.DialectDatabricks))
}

func TestStripViewHeader(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		want    string
		wantErr bool
	}{
		{
			name: "plain_body",
			sql:  "  SELECT * FROM t ;",
			want: "SELECT * FROM t",
		},
		{
			name: "snowflake_get_ddl",
			sql:  "create or replace view DB.S.V(ID, NAME) as\nselect id, name from DB.S.T;",
			want: "select id, name from DB.S.T",
		},
		{
			name: "secure_view_with_comment",
			sql:  "CREATE SECURE VIEW v COMMENT = 'a view' AS SELECT 1",
			want: "SELECT 1",
		},
		{
			name:    "create_without_as",
			sql:     "CREATE VIEW v",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StripViewHeader(tt.sql, domain.DialectSnowflake)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.TrimSpace(got))
		})
	}
}
