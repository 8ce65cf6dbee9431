package ddl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bricksync/internal/domain"
)

func TestDuckDBScanView(t *testing.T) {
	name := domain.MustParseFQTN("lake.sales.orders")
	tests := []struct {
		name     string
		format   domain.TableFormat
		location string
		want     string
		wantErr  string
	}{
		{
			name:     "delta",
			format:   domain.FormatDelta,
			location: "s3://x/y",
			want:     `CREATE OR REPLACE VIEW "lake"."sales"."orders" AS SELECT * FROM delta_scan('s3://x/y')`,
		},
		{
			name:     "iceberg",
			format:   domain.FormatIceberg,
			location: "s3://x/y/metadata/v2.metadata.json",
			want:     `CREATE OR REPLACE VIEW "lake"."sales"."orders" AS SELECT * FROM iceberg_scan('s3://x/y/metadata/v2.metadata.json')`,
		},
		{
			name:     "parquet_directory",
			format:   domain.FormatParquet,
			location: "s3://x/y/",
			want:     `CREATE OR REPLACE VIEW "lake"."sales"."orders" AS SELECT * FROM read_parquet('s3://x/y/**/*.parquet')`,
		},
		{
			name:     "avro_unsupported",
			format:   domain.FormatAvro,
			location: "s3://x/y",
			wantErr:  "unsupported scan format",
		},
		{
			name:    "missing_location",
			format:  domain.FormatDelta,
			wantErr: "scan location is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DuckDBScanView(name, tt.format, tt.location)
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

func TestCreateS3Secret(t *testing.T) {
	got, err := CreateS3Secret("s3_lake", S3SecretOptions{
		KeyID:    "AKIA",
		Secret:   "shh",
		Region:   "eu-west-1",
		URLStyle: "path",
	})
	require.NoError(t, err)
	assert.Equal(t, "CREATE OR REPLACE SECRET \"s3_lake\" (\n\tTYPE S3,\n\tKEY_ID 'AKIA',\n\tSECRET 'shh',\n\tREGION 'eu-west-1',\n\tURL_STYLE 'path'\n)", got)

	chain, err := CreateS3Secret("s3_chain", S3SecretOptions{Region: "us-east-1"})
	require.NoError(t, err)
	assert.Contains(t, chain, "PROVIDER credential_chain")

	_, err = CreateS3Secret("", S3SecretOptions{})
	require.Error(t, err)
}

func TestCreateAzureAndGCSSecrets(t *testing.T) {
	az, err := CreateAzureSecret("az", "acct", "key", "")
	require.NoError(t, err)
	assert.Contains(t, az, "ACCOUNT_NAME 'acct'")
	assert.Contains(t, az, "ACCOUNT_KEY 'key'")

	az, err = CreateAzureSecret("az", "", "", "DefaultEndpointsProtocol=https")
	require.NoError(t, err)
	assert.Contains(t, az, "CONNECTION_STRING 'DefaultEndpointsProtocol=https'")

	_, err = CreateAzureSecret("az", "", "", "")
	require.Error(t, err)

	gcs, err := CreateGCSSecret("gcs", "GOOG1", "secret")
	require.NoError(t, err)
	assert.Contains(t, gcs, "TYPE GCS")

	_, err = CreateGCSSecret("gcs", "", "")
	require.Error(t, err)
}

func TestAttachAndSchema(t *testing.T) {
	got, err := AttachDatabase("lake", "/data/lake.duckdb")
	require.NoError(t, err)
	assert.Equal(t, `ATTACH IF NOT EXISTS '/data/lake.duckdb' AS "lake"`, got)

	s, err := DuckDBCreateSchema("lake", "sales")
	require.NoError(t, err)
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "lake"."sales"`, s)

	ext, err := InstallExtension("delta")
	require.NoError(t, err)
	assert.Equal(t, "INSTALL delta; LOAD delta;", ext)
}
