package ddl

import (
	"fmt"
	"strings"

	"bricksync/internal/domain"
)

// DuckDBExtensions are installed and loaded before a DuckDB target is used.
var DuckDBExtensions = []string{"httpfs", "delta", "iceberg"}

// InstallExtension returns INSTALL <ext>; LOAD <ext>.
func InstallExtension(ext string) (string, error) {
	if err := ValidateIdentifier(ext); err != nil {
		return "", fmt.Errorf("invalid extension name: %w", err)
	}
	return fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext), nil
}

// AttachDatabase returns ATTACH IF NOT EXISTS '<path>' AS "<name>".
func AttachDatabase(name, path string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid database name: %w", err)
	}
	if path == "" {
		return "", fmt.Errorf("database path is required")
	}
	return fmt.Sprintf("ATTACH IF NOT EXISTS %s AS %s", QuoteLiteral(path), QuoteIdentifier(name)), nil
}

// DuckDBCreateSchema returns CREATE SCHEMA IF NOT EXISTS "<catalog>"."<schema>".
func DuckDBCreateSchema(catalog, schema string) (string, error) {
	if schema == "" {
		return "", fmt.Errorf("invalid schema name: name is required")
	}
	name := QuoteIdentifier(schema)
	if catalog != "" {
		name = QuoteIdentifier(catalog) + "." + name
	}
	return "CREATE SCHEMA IF NOT EXISTS " + name, nil
}

// DuckDBScanView returns a view over delta_scan or iceberg_scan:
//
//	CREATE OR REPLACE VIEW "c"."s"."t" AS SELECT * FROM delta_scan('s3://...')
func DuckDBScanView(name domain.FQTN, format domain.TableFormat, location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("scan location is required")
	}
	var scan string
	switch format {
	case domain.FormatDelta:
		scan = "delta_scan"
	case domain.FormatIceberg:
		scan = "iceberg_scan"
	case domain.FormatParquet:
		scan = "read_parquet"
		if !strings.HasSuffix(location, ".parquet") {
			location = strings.TrimSuffix(location, "/") + "/**/*.parquet"
		}
	default:
		return "", fmt.Errorf("unsupported scan format: %q", format)
	}
	return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM %s(%s)",
		QualifiedName(name), scan, QuoteLiteral(location)), nil
}

// DuckDBView returns CREATE OR REPLACE VIEW <name> AS <body>.
func DuckDBView(name domain.FQTN, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("view body is required")
	}
	return "CREATE OR REPLACE VIEW " + QualifiedName(name) + " AS " + body, nil
}

// S3SecretOptions configures a DuckDB S3 secret. Empty fields are omitted,
// which lets DuckDB fall back to its credential chain.
type S3SecretOptions struct {
	KeyID    string
	Secret   string
	Endpoint string
	Region   string
	URLStyle string
	Scope    string
}

// CreateS3Secret returns a DuckDB DDL statement to create an S3 secret.
func CreateS3Secret(name string, o S3SecretOptions) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	opts := []string{"TYPE S3"}
	if o.KeyID == "" && o.Secret == "" {
		opts = append(opts, "PROVIDER credential_chain")
	}
	for _, kv := range [][2]string{
		{"KEY_ID", o.KeyID},
		{"SECRET", o.Secret},
		{"ENDPOINT", o.Endpoint},
		{"REGION", o.Region},
		{"URL_STYLE", o.URLStyle},
		{"SCOPE", o.Scope},
	} {
		if kv[1] != "" {
			opts = append(opts, kv[0]+" "+QuoteLiteral(kv[1]))
		}
	}
	return secretStatement(name, opts), nil
}

// CreateAzureSecret returns a DuckDB DDL statement to create an Azure secret.
func CreateAzureSecret(name, accountName, accountKey, connectionString string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	if connectionString != "" {
		return secretStatement(name, []string{"TYPE AZURE", "CONNECTION_STRING " + QuoteLiteral(connectionString)}), nil
	}
	if accountName == "" {
		return "", fmt.Errorf("azure account name or connection string is required")
	}
	opts := []string{"TYPE AZURE", "ACCOUNT_NAME " + QuoteLiteral(accountName)}
	if accountKey != "" {
		opts = append(opts, "ACCOUNT_KEY "+QuoteLiteral(accountKey))
	} else {
		opts = append(opts, "PROVIDER credential_chain")
	}
	return secretStatement(name, opts), nil
}

// CreateGCSSecret returns a DuckDB DDL statement to create a GCS secret
// from HMAC keys.
func CreateGCSSecret(name, keyID, secret string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	if keyID == "" || secret == "" {
		return "", fmt.Errorf("gcs secret requires an HMAC key id and secret")
	}
	return secretStatement(name, []string{
		"TYPE GCS",
		"KEY_ID " + QuoteLiteral(keyID),
		"SECRET " + QuoteLiteral(secret),
	}), nil
}

func secretStatement(name string, opts []string) string {
	return fmt.Sprintf("CREATE OR REPLACE SECRET %s (\n\t%s\n)", QuoteIdentifier(name), strings.Join(opts, ",\n\t"))
}
