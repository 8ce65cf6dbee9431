// Package glue implements a target provider that registers iceberg tables in
// the AWS Glue Data Catalog by metadata location. Glue has one catalog per
// account, so the catalog part of a target name is ignored.
package glue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsglue "github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"

	"bricksync/internal/domain"
	"bricksync/internal/objstore"
	"bricksync/internal/provider/props"
)

// Glue table parameters understood by iceberg engines.
const (
	paramTableType        = "table_type"
	paramMetadataLocation = "metadata_location"
	paramPrevious         = "previous_metadata_location"
	tableTypeIceberg      = "ICEBERG"
)

// API is the subset of the Glue client the provider calls.
type API interface {
	GetDatabases(ctx context.Context, in *awsglue.GetDatabasesInput, opts ...func(*awsglue.Options)) (*awsglue.GetDatabasesOutput, error)
	CreateDatabase(ctx context.Context, in *awsglue.CreateDatabaseInput, opts ...func(*awsglue.Options)) (*awsglue.CreateDatabaseOutput, error)
	GetTable(ctx context.Context, in *awsglue.GetTableInput, opts ...func(*awsglue.Options)) (*awsglue.GetTableOutput, error)
	CreateTable(ctx context.Context, in *awsglue.CreateTableInput, opts ...func(*awsglue.Options)) (*awsglue.CreateTableOutput, error)
	UpdateTable(ctx context.Context, in *awsglue.UpdateTableInput, opts ...func(*awsglue.Options)) (*awsglue.UpdateTableOutput, error)
	DeleteTable(ctx context.Context, in *awsglue.DeleteTableInput, opts ...func(*awsglue.Options)) (*awsglue.DeleteTableOutput, error)
}

// Config holds AWS settings. Region is required; credentials fall back to
// the default chain.
type Config struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	CatalogID       string
}

// ConfigFromProperties reads a Config from provider properties.
func ConfigFromProperties(name string, p props.Props) (Config, error) {
	if err := p.Require(name, "region_name"); err != nil {
		return Config{}, err
	}
	return Config{
		Region:          p.Get("region_name", ""),
		Profile:         p.Get("profile_name", ""),
		AccessKeyID:     p.Get("aws_access_key_id", ""),
		SecretAccessKey: p.Get("aws_secret_access_key", ""),
		CatalogID:       p.Get("catalog_id", ""),
	}, nil
}

// Deps holds dependencies for Provider. Client and Metadata are built from
// Config on Connect when nil.
type Deps struct {
	Client   API
	Metadata objstore.Reader
	Logger   *slog.Logger
}

// Provider is a Glue Data Catalog target.
type Provider struct {
	name   string
	config Config
	client API
	meta   objstore.Reader
	logger *slog.Logger
}

var (
	_ domain.Provider      = (*Provider)(nil)
	_ domain.TargetCatalog = (*Provider)(nil)
)

// New creates a Provider.
func New(name string, cfg Config, deps Deps) *Provider {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		name:   name,
		config: cfg,
		client: deps.Client,
		meta:   deps.Metadata,
		logger: logger.With("component", "glue", "provider", name),
	}
}

func (p *Provider) Name() string              { return p.name }
func (p *Provider) Kind() domain.ProviderKind { return domain.ProviderGlue }
func (p *Provider) Dialect() domain.Dialect   { return domain.DialectSpark }

// Connect loads AWS configuration and verifies access with GetDatabases.
func (p *Provider) Connect(ctx context.Context) error {
	if p.client == nil {
		opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(p.config.Region)}
		if p.config.Profile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(p.config.Profile))
		}
		if p.config.AccessKeyID != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(p.config.AccessKeyID, p.config.SecretAccessKey, ""),
			))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return fmt.Errorf("load AWS config for %s: %w", p.name, err)
		}
		p.client = awsglue.NewFromConfig(cfg)
	}
	if p.meta == nil {
		p.meta = objstore.New(objstore.Options{
			S3Region: p.config.Region,
			S3KeyID:  p.config.AccessKeyID,
			S3Secret: p.config.SecretAccessKey,
		}, p.logger)
	}
	if _, err := p.client.GetDatabases(ctx, &awsglue.GetDatabasesInput{
		CatalogId:  p.catalogID(),
		MaxResults: aws.Int32(1),
	}); err != nil {
		return fmt.Errorf("authenticate with AWS Glue for %s: %w", p.name, err)
	}
	p.logger.Info("connected", "region", p.config.Region)
	return nil
}

// Close is a no-op; the SDK client holds no resources.
func (p *Provider) Close() error { return nil }

func (p *Provider) catalogID() *string {
	if p.config.CatalogID == "" {
		return nil
	}
	return aws.String(p.config.CatalogID)
}

// SupportsFormat reports true for iceberg only.
func (p *Provider) SupportsFormat(format domain.TableFormat) bool {
	return format == domain.FormatIceberg
}

// TableStatements renders descriptive statements for the register, replace
// and refresh operations.
func (p *Provider) TableStatements(_ context.Context, ident domain.FQTN, table *domain.TableSource) (domain.TableStatements, error) {
	loc := table.MetadataLocation()
	if loc == "" {
		return domain.TableStatements{}, fmt.Errorf("table %s has no iceberg metadata location", table.Ident)
	}
	name := ident.Schema + "." + ident.Table
	return domain.TableStatements{
		Create:  fmt.Sprintf("GLUE CREATE TABLE %s metadata_location='%s'", name, loc),
		Replace: fmt.Sprintf("GLUE DELETE TABLE %s; GLUE CREATE TABLE %s metadata_location='%s'", name, name, loc),
		Refresh: fmt.Sprintf("GLUE UPDATE TABLE %s metadata_location='%s'", name, loc),
	}, nil
}

// ViewStatement fails: Glue views are not supported.
func (p *Provider) ViewStatement(ident domain.FQTN, _ string) (string, error) {
	return "", domain.ErrValidation("glue catalog %s does not support views (%s)", p.name, ident)
}

// DescribeObject returns the table's metadata_location parameter.
func (p *Provider) DescribeObject(ctx context.Context, name domain.FQTN) (string, error) {
	t, err := p.getTable(ctx, name)
	if err != nil {
		return "", err
	}
	return t.Parameters[paramMetadataLocation], nil
}

// CreateNamespace is a no-op.
func (p *Provider) CreateNamespace(_ context.Context, catalog string) error {
	p.logger.Debug("glue has no catalogs, ignoring", "catalog", catalog)
	return nil
}

// CreateSchema creates the Glue database named schema.
func (p *Provider) CreateSchema(ctx context.Context, _, schema string) error {
	_, err := p.client.CreateDatabase(ctx, &awsglue.CreateDatabaseInput{
		CatalogId:     p.catalogID(),
		DatabaseInput: &types.DatabaseInput{Name: aws.String(schema)},
	})
	if err != nil {
		return p.mapError(err, "database "+schema)
	}
	p.logger.Info("database created", "database", schema)
	return nil
}

// ExecuteDDL registers the table.
func (p *Provider) ExecuteDDL(ctx context.Context, t *domain.Target) error {
	input, err := p.tableInput(ctx, t, nil)
	if err != nil {
		return err
	}
	p.logger.Debug("executing", "statement", t.DDL)
	_, err = p.client.CreateTable(ctx, &awsglue.CreateTableInput{
		CatalogId:    p.catalogID(),
		DatabaseName: aws.String(t.Ident.Schema),
		TableInput:   input,
	})
	if err != nil {
		return p.mapError(err, "table "+t.Ident.String())
	}
	p.logger.Info("table registered", "table", t.Ident.String())
	return nil
}

// ExecuteReplace deletes the catalog entry, which leaves the data files in
// place, and registers the table again.
func (p *Provider) ExecuteReplace(ctx context.Context, t *domain.Target) error {
	p.logger.Debug("executing", "statement", t.ReplaceDDL)
	_, err := p.client.DeleteTable(ctx, &awsglue.DeleteTableInput{
		CatalogId:    p.catalogID(),
		DatabaseName: aws.String(t.Ident.Schema),
		Name:         aws.String(t.Ident.Table),
	})
	if err != nil {
		var nf *types.EntityNotFoundException
		if !errors.As(err, &nf) {
			return p.mapError(err, "table "+t.Ident.String())
		}
	}
	return p.ExecuteDDL(ctx, t)
}

// ExecuteRefresh updates metadata_location. It is a no-op when the location
// is unchanged and returns a *domain.StalePointerError when the new metadata
// belongs to a different iceberg table.
func (p *Provider) ExecuteRefresh(ctx context.Context, t *domain.Target) error {
	ts, ok := t.Table()
	if !ok {
		return fmt.Errorf("refresh %s: not a table", t.Ident)
	}
	next := ts.MetadataLocation()
	current, err := p.getTable(ctx, t.Ident)
	if err != nil {
		return err
	}
	prev := current.Parameters[paramMetadataLocation]
	p.logger.Debug("refreshing", "table", t.Ident.String(), "previous", prev, "next", next)
	if prev == next {
		p.logger.Info("metadata location unchanged, skipping refresh", "table", t.Ident.String())
		return nil
	}

	if prev != "" {
		same, err := objstore.SameTable(ctx, p.meta, prev, next)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// The previous metadata is gone; the pointer is repaired below.
			p.logger.Warn("previous metadata file not found", "table", t.Ident.String(), "location", prev)
		case err != nil:
			return fmt.Errorf("compare metadata for %s: %w", t.Ident, err)
		case !same:
			return domain.ErrStalePointer(t.Ident.String(), "table uuid in %s does not match the table uuid in metadata file %s", prev, next)
		}
	}

	input, err := p.tableInput(ctx, t, current)
	if err != nil {
		return err
	}
	p.logger.Debug("executing", "statement", t.RefreshStatement)
	_, err = p.client.UpdateTable(ctx, &awsglue.UpdateTableInput{
		CatalogId:    p.catalogID(),
		DatabaseName: aws.String(t.Ident.Schema),
		TableInput:   input,
		VersionId:    current.VersionId,
	})
	if err != nil {
		return p.mapError(err, "table "+t.Ident.String())
	}
	p.logger.Info("table refreshed", "table", t.Ident.String(), "metadata_location", next)
	return nil
}

// tableInput builds the Glue table definition for t. Parameters of an
// existing table are kept and its metadata location moves to
// previous_metadata_location.
func (p *Provider) tableInput(ctx context.Context, t *domain.Target, existing *types.Table) (*types.TableInput, error) {
	ts, ok := t.Table()
	if !ok {
		return nil, fmt.Errorf("register %s: not a table", t.Ident)
	}
	loc := ts.MetadataLocation()
	md, err := objstore.ReadIcebergMetadata(ctx, p.meta, loc)
	if err != nil {
		return nil, fmt.Errorf("read metadata for %s: %w", t.Ident, err)
	}

	params := map[string]string{}
	if existing != nil {
		for k, v := range existing.Parameters {
			params[k] = v
		}
		if prev := existing.Parameters[paramMetadataLocation]; prev != "" {
			params[paramPrevious] = prev
		}
	}
	params[paramTableType] = tableTypeIceberg
	params[paramMetadataLocation] = loc

	location := md.Location
	if location == "" {
		location = ts.StorageLocation
	}
	return &types.TableInput{
		Name:              aws.String(t.Ident.Table),
		TableType:         aws.String("EXTERNAL_TABLE"),
		Parameters:        params,
		StorageDescriptor: &types.StorageDescriptor{Location: aws.String(location)},
	}, nil
}

func (p *Provider) getTable(ctx context.Context, name domain.FQTN) (*types.Table, error) {
	out, err := p.client.GetTable(ctx, &awsglue.GetTableInput{
		CatalogId:    p.catalogID(),
		DatabaseName: aws.String(name.Schema),
		Name:         aws.String(name.Table),
	})
	if err != nil {
		return nil, p.mapError(err, "table "+name.String())
	}
	if out.Table == nil {
		return nil, domain.ErrNotFound("table %s not found", name)
	}
	return out.Table, nil
}

// mapError translates Glue service errors into domain errors.
func (p *Provider) mapError(err error, what string) error {
	var (
		nf     *types.EntityNotFoundException
		exists *types.AlreadyExistsException
	)
	switch {
	case errors.As(err, &nf):
		return domain.ErrNotFound("%s not found", what)
	case errors.As(err, &exists):
		return domain.ErrConflict("%s already exists", what)
	default:
		return fmt.Errorf("glue %s: %w", what, err)
	}
}
