package ddl

import (
	"fmt"
	"strings"

	"bricksync/internal/domain"
)

// SnowflakeCreateDatabase returns CREATE DATABASE IF NOT EXISTS "<name>".
func SnowflakeCreateDatabase(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("database name is required")
	}
	return "CREATE DATABASE IF NOT EXISTS " + QuoteIdentifier(name), nil
}

// SnowflakeCreateSchema returns CREATE SCHEMA IF NOT EXISTS "<db>"."<schema>",
// or just "<schema>" for the session database when db is empty.
func SnowflakeCreateSchema(db, schema string) (string, error) {
	if schema == "" {
		return "", fmt.Errorf("schema name is required")
	}
	name := QuoteIdentifier(schema)
	if db != "" {
		name = QuoteIdentifier(db) + "." + name
	}
	return "CREATE SCHEMA IF NOT EXISTS " + name, nil
}

// SnowflakeStageLocation rewrites an absolute storage location into a path
// on the external stage whose URL prefixes it: s3://bucket/a/b with stage
// DB.S.STG at s3://bucket/ becomes @DB.S.STG/a/b.
func SnowflakeStageLocation(location, stageURL, stageName string) (string, error) {
	if stageName == "" {
		return "", fmt.Errorf("stage name is required")
	}
	rel, err := RelativePath(strings.TrimSuffix(location, "/"), stageURL)
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", stageName, err)
	}
	return "@" + stageName + "/" + rel, nil
}

// SnowflakeMetadataFilePath returns an iceberg metadata file path relative to
// an external volume's base URL, as METADATA_FILE_PATH expects.
func SnowflakeMetadataFilePath(metadataLocation, volumeBaseURL string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(metadataLocation), ".json") {
		return "", fmt.Errorf("metadata file must be a JSON file, got %s", metadataLocation)
	}
	rel, err := RelativePath(metadataLocation, volumeBaseURL)
	if err != nil {
		return "", err
	}
	if rel == "" {
		return "", fmt.Errorf("metadata path must be below the volume base URL: %s", metadataLocation)
	}
	return rel, nil
}

// SnowflakeExternalDeltaTable returns the DDL for a Delta-format external
// table reading from a stage location.
//
//	CREATE OR REPLACE EXTERNAL TABLE "db"."s"."t" PARTITION BY ("k")
//	LOCATION=@stage/path REFRESH_ON_CREATE=FALSE AUTO_REFRESH=FALSE
//	FILE_FORMAT=(TYPE=PARQUET) TABLE_FORMAT=DELTA
func SnowflakeExternalDeltaTable(name domain.FQTN, stageLocation string, partitionKeys []string) (string, error) {
	if !strings.HasPrefix(stageLocation, "@") {
		return "", fmt.Errorf("stage location must start with @, got %q", stageLocation)
	}
	var b strings.Builder
	b.WriteString("CREATE OR REPLACE EXTERNAL TABLE ")
	b.WriteString(QualifiedName(name))
	if len(partitionKeys) > 0 {
		keys := make([]string, len(partitionKeys))
		for i, k := range partitionKeys {
			keys[i] = QuoteIdentifier(k)
		}
		b.WriteString(" PARTITION BY (")
		b.WriteString(strings.Join(keys, ","))
		b.WriteString(")")
	}
	b.WriteString(" LOCATION=")
	b.WriteString(stageLocation)
	b.WriteString(" REFRESH_ON_CREATE=FALSE AUTO_REFRESH=FALSE FILE_FORMAT=(TYPE=PARQUET) TABLE_FORMAT=DELTA")
	return b.String(), nil
}

// SnowflakeRefreshExternalTable returns ALTER EXTERNAL TABLE <name> REFRESH.
func SnowflakeRefreshExternalTable(name domain.FQTN) string {
	return "ALTER EXTERNAL TABLE " + QualifiedName(name) + " REFRESH"
}

// SnowflakeIcebergTable returns the DDL for an externally managed iceberg
// table. replace produces CREATE OR REPLACE ... COPY GRANTS.
func SnowflakeIcebergTable(name domain.FQTN, volume, catalog, metadataPath string, replace bool) (string, error) {
	if volume == "" {
		return "", fmt.Errorf("external volume is required")
	}
	if catalog == "" {
		return "", fmt.Errorf("catalog integration is required")
	}
	if metadataPath == "" {
		return "", fmt.Errorf("metadata file path is required")
	}
	verb := "CREATE ICEBERG TABLE "
	if replace {
		verb = "CREATE OR REPLACE ICEBERG TABLE "
	}
	stmt := fmt.Sprintf("%s%s EXTERNAL_VOLUME=%s CATALOG=%s METADATA_FILE_PATH=%s",
		verb,
		QualifiedName(name),
		QuoteLiteral(volume),
		QuoteLiteral(catalog),
		QuoteLiteral(metadataPath),
	)
	if replace {
		stmt += " COPY GRANTS"
	}
	return stmt, nil
}

// SnowflakeRefreshIcebergTable returns ALTER ICEBERG TABLE <name> REFRESH '<path>'.
func SnowflakeRefreshIcebergTable(name domain.FQTN, metadataPath string) string {
	return "ALTER ICEBERG TABLE " + QualifiedName(name) + " REFRESH " + QuoteLiteral(metadataPath)
}

// SnowflakeView returns CREATE OR REPLACE VIEW <name> COPY GRANTS AS <body>.
func SnowflakeView(name domain.FQTN, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("view body is required")
	}
	return "CREATE OR REPLACE VIEW " + QualifiedName(name) + " COPY GRANTS AS " + body, nil
}
