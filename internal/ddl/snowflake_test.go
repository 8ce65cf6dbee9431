package ddl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bricksync/internal/domain"
)

func TestSnowflakeStageLocation(t *testing.T) {
	tests := []struct {
		name     string
		location string
		stageURL string
		stage    string
		want     string
		wantErr  string
	}{
		{
			name:     "nested_path",
			location: "s3://x/y",
			stageURL: "s3://x/",
			stage:    "DB.S.STG",
			want:     "@DB.S.STG/y",
		},
		{
			name:     "trailing_slash_on_location",
			location: "s3://lake/sales/orders/",
			stageURL: "s3://lake/sales",
			stage:    "STG",
			want:     "@STG/orders",
		},
		{
			name:     "not_under_stage",
			location: "s3://other/y",
			stageURL: "s3://x/",
			stage:    "STG",
			wantErr:  "not under base location",
		},
		{
			name:     "prefix_is_not_a_directory",
			location: "s3://xyz/y",
			stageURL: "s3://x",
			stage:    "STG",
			wantErr:  "not under base location",
		},
		{
			name:     "empty_stage",
			location: "s3://x/y",
			stageURL: "s3://x/",
			wantErr:  "stage name is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SnowflakeStageLocation(tt.location, tt.stageURL, tt.stage)
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

func TestSnowflakeMetadataFilePath(t *testing.T) {
	tests := []struct {
		name     string
		location string
		base     string
		want     string
		wantErr  string
	}{
		{
			name:     "strips_base_and_slash",
			location: "s3://lake/warehouse/orders/metadata/00003-abc.metadata.json",
			base:     "s3://lake/warehouse",
			want:     "orders/metadata/00003-abc.metadata.json",
		},
		{
			name:     "base_with_trailing_slash",
			location: "s3://lake/warehouse/orders/metadata/v1.metadata.json",
			base:     "s3://lake/warehouse/",
			want:     "orders/metadata/v1.metadata.json",
		},
		{
			name:     "not_json",
			location: "s3://lake/warehouse/orders/metadata/snap-1.avro",
			base:     "s3://lake/warehouse",
			wantErr:  "JSON file",
		},
		{
			name:     "outside_volume",
			location: "gs://other/orders/metadata/v1.metadata.json",
			base:     "s3://lake/warehouse",
			wantErr:  "not under base location",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SnowflakeMetadataFilePath(tt.location, tt.base)
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

func TestSnowflakeExternalDeltaTable(t *testing.T) {
	name := domain.MustParseFQTN("a.b.c")

	got, err := SnowflakeExternalDeltaTable(name, "@STG/y", nil)
	require.NoError(t, err)
	assert.Equal(t, `CREATE OR REPLACE EXTERNAL TABLE "a"."b"."c" LOCATION=@STG/y REFRESH_ON_CREATE=FALSE AUTO_REFRESH=FALSE FILE_FORMAT=(TYPE=PARQUET) TABLE_FORMAT=DELTA`, got)

	got, err = SnowflakeExternalDeltaTable(name, "@STG/y", []string{"dt", "region"})
	require.NoError(t, err)
	assert.Contains(t, got, `PARTITION BY ("dt","region") LOCATION=@STG/y`)

	_, err = SnowflakeExternalDeltaTable(name, "s3://x/y", nil)
	require.Error(t, err)
}

func TestSnowflakeIcebergTable(t *testing.T) {
	name := domain.MustParseFQTN("a.b.c")

	got, err := SnowflakeIcebergTable(name, "vol", "objcat", "c/metadata/v1.metadata.json", false)
	require.NoError(t, err)
	assert.Equal(t, `CREATE ICEBERG TABLE "a"."b"."c" EXTERNAL_VOLUME='vol' CATALOG='objcat' METADATA_FILE_PATH='c/metadata/v1.metadata.json'`, got)

	got, err = SnowflakeIcebergTable(name, "vol", "objcat", "c/metadata/v1.metadata.json", true)
	require.NoError(t, err)
	assert.Equal(t, `CREATE OR REPLACE ICEBERG TABLE "a"."b"."c" EXTERNAL_VOLUME='vol' CATALOG='objcat' METADATA_FILE_PATH='c/metadata/v1.metadata.json' COPY GRANTS`, got)

	_, err = SnowflakeIcebergTable(name, "", "objcat", "p.json", false)
	require.Error(t, err)
	_, err = SnowflakeIcebergTable(name, "vol", "", "p.json", false)
	require.Error(t, err)
}

func TestSnowflakeRefreshAndView(t *testing.T) {
	name := domain.MustParseFQTN("a.b.c")
	assert.Equal(t, `ALTER ICEBERG TABLE "a"."b"."c" REFRESH 'c/metadata/v2.metadata.json'`,
		SnowflakeRefreshIcebergTable(name, "c/metadata/v2.metadata.json"))
	assert.Equal(t, `ALTER EXTERNAL TABLE "a"."b"."c" REFRESH`, SnowflakeRefreshExternalTable(name))

	v, err := SnowflakeView(domain.MustParseFQTN("a.v.w"), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, `CREATE OR REPLACE VIEW "a"."v"."w" COPY GRANTS AS SELECT 1`, v)

	_, err = SnowflakeView(name, "  ")
	require.Error(t, err)
}

func TestSnowflakeNamespaces(t *testing.T) {
	db, err := SnowflakeCreateDatabase("a")
	require.NoError(t, err)
	assert.Equal(t, `CREATE DATABASE IF NOT EXISTS "a"`, db)

	s, err := SnowflakeCreateSchema("a", "b")
	require.NoError(t, err)
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "a"."b"`, s)

	s, err = SnowflakeCreateSchema("", "b")
	require.NoError(t, err)
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "b"`, s)

	_, err = SnowflakeCreateDatabase("")
	require.Error(t, err)
}
