package duckdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bricksync/internal/ddl"
	"bricksync/internal/domain"
	"bricksync/internal/provider/props"
)

func setup(t *testing.T, cfg Config) *Provider {
	t.Helper()
	p := New("local", cfg, Deps{})
	require.NoError(t, p.Connect(context.Background()))
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestConfigFromProperties(t *testing.T) {
	tests := []struct {
		name  string
		props props.Props
		want  Config
	}{
		{
			name:  "defaults",
			props: props.Props{},
			want:  Config{Extensions: ddl.DuckDBExtensions},
		},
		{
			name:  "file_database",
			props: props.Props{"path": "/data/lake/main.duckdb", "install_extensions": "false", "s3_region": "eu-west-1"},
			want:  Config{Path: "/data/lake/main.duckdb", DatabaseDir: "/data/lake", S3: ddl.S3SecretOptions{Region: "eu-west-1"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConfigFromProperties("local", tt.props)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ConfigFromProperties("local", props.Props{"install_extensions": "maybe"})
	require.Error(t, err)
}

func TestSecretStatements(t *testing.T) {
	p := New("local", Config{
		S3:               ddl.S3SecretOptions{KeyID: "AK", Secret: "SK", Region: "us-east-1"},
		AzureAccountName: "acct",
		GCSKeyID:         "GOOG1",
		GCSSecret:        "s",
	}, Deps{})
	stmts, err := p.secretStatements()
	require.NoError(t, err)
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], `CREATE OR REPLACE SECRET "bricksync_s3"`)
	assert.Contains(t, stmts[1], "ACCOUNT_NAME 'acct'")
	assert.Contains(t, stmts[2], "TYPE GCS")

	p = New("local", Config{GCSKeyID: "GOOG1"}, Deps{})
	_, err = p.secretStatements()
	require.Error(t, err)
}

func TestTableStatements(t *testing.T) {
	p := New("local", Config{}, Deps{})
	ident := domain.MustParseFQTN("lake.sales.orders")

	tests := []struct {
		name    string
		src     *domain.TableSource
		want    string
		wantErr bool
	}{
		{
			name: "delta",
			src:  &domain.TableSource{Format: domain.FormatDelta, StorageLocation: "s3://b/orders"},
			want: `CREATE OR REPLACE VIEW "lake"."sales"."orders" AS SELECT * FROM delta_scan('s3://b/orders')`,
		},
		{
			name: "uniform_iceberg",
			src: &domain.TableSource{
				Format:          domain.FormatIceberg,
				StorageLocation: "s3://b/orders",
				Uniform:         &domain.UniformMetadata{MetadataLocation: "s3://b/orders/metadata/v2.metadata.json"},
			},
			want: `CREATE OR REPLACE VIEW "lake"."sales"."orders" AS SELECT * FROM iceberg_scan('s3://b/orders/metadata/v2.metadata.json')`,
		},
		{
			name: "parquet",
			src:  &domain.TableSource{Format: domain.FormatParquet, StorageLocation: "s3://b/raw/"},
			want: `CREATE OR REPLACE VIEW "lake"."sales"."orders" AS SELECT * FROM read_parquet('s3://b/raw/**/*.parquet')`,
		},
		{name: "missing_location", src: &domain.TableSource{Format: domain.FormatDelta}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.src.Ident = ident
			stmts, err := p.TableStatements(context.Background(), ident, tt.src)
			if tt.wantErr {
				var ve *domain.ValidationError
				require.True(t, errors.As(err, &ve))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmts.Create)
			assert.Equal(t, tt.want, stmts.Refresh)
			assert.False(t, stmts.RefreshAfterCreate)
		})
	}

	assert.True(t, p.SupportsFormat(domain.FormatParquet))
	assert.False(t, p.SupportsFormat(domain.FormatAvro))
}

func TestConvergeViews(t *testing.T) {
	p := setup(t, Config{})
	ctx := context.Background()

	require.NoError(t, p.CreateNamespace(ctx, "lake"))
	require.NoError(t, p.CreateNamespace(ctx, "lake"), "attaching twice is a no-op")
	require.NoError(t, p.CreateSchema(ctx, "lake", "sales"))

	name := domain.MustParseFQTN("lake.sales.answer")
	_, err := p.DescribeObject(ctx, name)
	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf))

	stmt, err := p.ViewStatement(name, "SELECT 42 AS answer")
	require.NoError(t, err)
	tgt := &domain.Target{Kind: domain.KindView, Ident: name, DDL: stmt, ReplaceDDL: stmt, RefreshStatement: stmt}
	require.NoError(t, p.ExecuteDDL(ctx, tgt))
	require.NoError(t, p.ExecuteRefresh(ctx, tgt))

	kind, err := p.DescribeObject(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "VIEW", kind)

	var answer int
	require.NoError(t, p.db.QueryRowContext(ctx, `SELECT answer FROM "lake"."sales"."answer"`).Scan(&answer))
	assert.Equal(t, 42, answer)

	err = p.ExecuteDDL(ctx, &domain.Target{Ident: name, DDL: `CREATE VIEW "lake"."sales"."answer" AS SELECT 1`})
	var ce *domain.ConflictError
	assert.True(t, errors.As(err, &ce))
}

func TestCreateNamespace_FileDatabase(t *testing.T) {
	dir := t.TempDir()
	p := setup(t, Config{DatabaseDir: dir})
	ctx := context.Background()

	require.NoError(t, p.CreateNamespace(ctx, "analytics"))
	require.NoError(t, p.CreateSchema(ctx, "analytics", "sales"))
	assert.FileExists(t, filepath.Join(dir, "analytics.duckdb"))
}
