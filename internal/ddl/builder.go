// Package ddl builds the SQL statements that bricksync issues against
// Snowflake, Databricks and DuckDB targets.
package ddl

import (
	"fmt"
	"strings"

	"bricksync/internal/domain"
)

// DatabricksCreateCatalog returns CREATE CATALOG IF NOT EXISTS `<name>`.
func DatabricksCreateCatalog(name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid catalog name: %w", err)
	}
	return "CREATE CATALOG IF NOT EXISTS " + QuoteBacktick(name), nil
}

// DatabricksCreateSchema returns CREATE SCHEMA IF NOT EXISTS `<catalog>`.`<schema>`.
func DatabricksCreateSchema(catalog, schema string) (string, error) {
	if err := ValidateIdentifier(schema); err != nil {
		return "", fmt.Errorf("invalid schema name: %w", err)
	}
	name := QuoteBacktick(schema)
	if catalog != "" {
		if err := ValidateIdentifier(catalog); err != nil {
			return "", fmt.Errorf("invalid catalog name: %w", err)
		}
		name = QuoteBacktick(catalog) + "." + name
	}
	return "CREATE SCHEMA IF NOT EXISTS " + name, nil
}

// DatabricksDeltaTable returns a CREATE TABLE ... USING DELTA LOCATION statement.
func DatabricksDeltaTable(name domain.FQTN, location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("storage location is required")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s USING DELTA LOCATION %s",
		SparkQualifiedName(name), QuoteLiteral(location)), nil
}

// DatabricksUniformTable returns a CREATE TABLE ... UNIFORM iceberg
// METADATA_PATH statement registering an iceberg table by metadata file.
func DatabricksUniformTable(name domain.FQTN, metadataPath string) (string, error) {
	if metadataPath == "" {
		return "", fmt.Errorf("metadata path is required")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s UNIFORM iceberg METADATA_PATH %s",
		SparkQualifiedName(name), QuoteLiteral(metadataPath)), nil
}

// DatabricksRefreshTable returns REFRESH TABLE <name>, pinned to a metadata
// file when metadataPath is set.
func DatabricksRefreshTable(name domain.FQTN, metadataPath string) string {
	stmt := "REFRESH TABLE " + SparkQualifiedName(name)
	if metadataPath != "" {
		stmt += " METADATA_PATH " + QuoteLiteral(metadataPath)
	}
	return stmt
}

// DatabricksView returns CREATE OR REPLACE VIEW <name> AS <body>.
func DatabricksView(name domain.FQTN, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("view body is required")
	}
	return "CREATE OR REPLACE VIEW " + SparkQualifiedName(name) + " AS " + body, nil
}

// DatabricksDescribeHistory returns DESCRIBE HISTORY <name> LIMIT 1.
func DatabricksDescribeHistory(name domain.FQTN) string {
	return "DESCRIBE HISTORY " + SparkQualifiedName(name) + " LIMIT 1"
}

// DatabricksSyncUniformMetadata returns MSCK REPAIR TABLE <name> SYNC METADATA,
// which regenerates the iceberg projection of a UniForm table.
func DatabricksSyncUniformMetadata(name domain.FQTN) string {
	return "MSCK REPAIR TABLE " + SparkQualifiedName(name) + " SYNC METADATA"
}
