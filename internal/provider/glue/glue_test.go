package glue

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsglue "github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bricksync/internal/domain"
	"bricksync/internal/provider/props"
	"bricksync/internal/testutil"
)

const (
	uuidA = "9c12d441-03fe-4693-9a96-a0705ddf69c1"
	uuidB = "1b2f7d6e-4c1a-4a51-9e0e-59c7f1a6b2d4"
)

// fakeGlue keeps databases and tables in memory.
type fakeGlue struct {
	databases map[string]bool
	tables    map[string]types.Table
	updates   []*awsglue.UpdateTableInput
	connErr   error
}

func newFakeGlue() *fakeGlue {
	return &fakeGlue{databases: map[string]bool{}, tables: map[string]types.Table{}}
}

func (f *fakeGlue) GetDatabases(context.Context, *awsglue.GetDatabasesInput, ...func(*awsglue.Options)) (*awsglue.GetDatabasesOutput, error) {
	return &awsglue.GetDatabasesOutput{}, f.connErr
}

func (f *fakeGlue) CreateDatabase(_ context.Context, in *awsglue.CreateDatabaseInput, _ ...func(*awsglue.Options)) (*awsglue.CreateDatabaseOutput, error) {
	name := aws.ToString(in.DatabaseInput.Name)
	if f.databases[name] {
		return nil, &types.AlreadyExistsException{Message: aws.String("Database already exists.")}
	}
	f.databases[name] = true
	return &awsglue.CreateDatabaseOutput{}, nil
}

func (f *fakeGlue) GetTable(_ context.Context, in *awsglue.GetTableInput, _ ...func(*awsglue.Options)) (*awsglue.GetTableOutput, error) {
	t, ok := f.tables[aws.ToString(in.DatabaseName)+"."+aws.ToString(in.Name)]
	if !ok {
		return nil, &types.EntityNotFoundException{Message: aws.String("Table not found.")}
	}
	return &awsglue.GetTableOutput{Table: &t}, nil
}

func (f *fakeGlue) CreateTable(_ context.Context, in *awsglue.CreateTableInput, _ ...func(*awsglue.Options)) (*awsglue.CreateTableOutput, error) {
	key := aws.ToString(in.DatabaseName) + "." + aws.ToString(in.TableInput.Name)
	if _, ok := f.tables[key]; ok {
		return nil, &types.AlreadyExistsException{Message: aws.String("Table already exists.")}
	}
	f.tables[key] = types.Table{
		Name:              in.TableInput.Name,
		Parameters:        in.TableInput.Parameters,
		StorageDescriptor: in.TableInput.StorageDescriptor,
		VersionId:         aws.String("1"),
	}
	return &awsglue.CreateTableOutput{}, nil
}

func (f *fakeGlue) UpdateTable(_ context.Context, in *awsglue.UpdateTableInput, _ ...func(*awsglue.Options)) (*awsglue.UpdateTableOutput, error) {
	f.updates = append(f.updates, in)
	key := aws.ToString(in.DatabaseName) + "." + aws.ToString(in.TableInput.Name)
	t := f.tables[key]
	t.Parameters = in.TableInput.Parameters
	t.VersionId = aws.String("2")
	f.tables[key] = t
	return &awsglue.UpdateTableOutput{}, nil
}

func (f *fakeGlue) DeleteTable(_ context.Context, in *awsglue.DeleteTableInput, _ ...func(*awsglue.Options)) (*awsglue.DeleteTableOutput, error) {
	key := aws.ToString(in.DatabaseName) + "." + aws.ToString(in.Name)
	if _, ok := f.tables[key]; !ok {
		return nil, &types.EntityNotFoundException{Message: aws.String("Table not found.")}
	}
	delete(f.tables, key)
	return &awsglue.DeleteTableOutput{}, nil
}

func setup(t *testing.T) (*Provider, *fakeGlue, *testutil.MemObjects) {
	t.Helper()
	fg := newFakeGlue()
	objs := testutil.NewMemObjects()
	p := New("aws", Config{Region: "eu-west-1"}, Deps{Client: fg, Metadata: objs})
	require.NoError(t, p.Connect(context.Background()))
	return p, fg, objs
}

func target(name, metadataLocation string) *domain.Target {
	ident := domain.MustParseFQTN(name)
	return &domain.Target{
		Kind:  domain.KindTable,
		Ident: ident,
		Source: &domain.TableSource{
			Ident:        ident,
			NativeFormat: domain.FormatDelta,
			Format:       domain.FormatIceberg,
			Uniform:      &domain.UniformMetadata{MetadataLocation: metadataLocation},
		},
	}
}

func TestConfigFromProperties(t *testing.T) {
	cfg, err := ConfigFromProperties("aws", props.Props{"region_name": "us-east-1", "profile_name": "dev"})
	require.NoError(t, err)
	assert.Equal(t, Config{Region: "us-east-1", Profile: "dev"}, cfg)

	_, err = ConfigFromProperties("aws", props.Props{"profile_name": "dev"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region_name")
}

func TestConnect_AuthFailure(t *testing.T) {
	fg := newFakeGlue()
	fg.connErr = errors.New("UnrecognizedClientException")
	p := New("aws", Config{Region: "eu-west-1"}, Deps{Client: fg, Metadata: testutil.NewMemObjects()})

	err := p.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authenticate with AWS Glue for aws")
}

func TestCreateSchemaAndNamespace(t *testing.T) {
	p, fg, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, p.CreateNamespace(ctx, "main"))
	require.NoError(t, p.CreateSchema(ctx, "main", "sales"))
	assert.True(t, fg.databases["sales"])

	err := p.CreateSchema(ctx, "main", "sales")
	var ce *domain.ConflictError
	require.True(t, errors.As(err, &ce))
}

func TestExecuteDDL(t *testing.T) {
	p, fg, objs := setup(t)
	ctx := context.Background()
	objs.Put("s3://b/orders/metadata/v1.metadata.json", testutil.IcebergMetadataJSON(uuidA, "s3://b/orders"))
	fg.databases["sales"] = true

	require.NoError(t, p.ExecuteDDL(ctx, target("main.sales.orders", "s3://b/orders/metadata/v1.metadata.json")))

	tbl := fg.tables["sales.orders"]
	assert.Equal(t, "ICEBERG", tbl.Parameters["table_type"])
	assert.Equal(t, "s3://b/orders/metadata/v1.metadata.json", tbl.Parameters["metadata_location"])
	assert.Equal(t, "s3://b/orders", aws.ToString(tbl.StorageDescriptor.Location))

	loc, err := p.DescribeObject(ctx, domain.MustParseFQTN("main.sales.orders"))
	require.NoError(t, err)
	assert.Equal(t, "s3://b/orders/metadata/v1.metadata.json", loc)

	err = p.ExecuteDDL(ctx, target("main.sales.orders", "s3://b/orders/metadata/v1.metadata.json"))
	var ce *domain.ConflictError
	require.True(t, errors.As(err, &ce))

	_, err = p.DescribeObject(ctx, domain.MustParseFQTN("main.sales.missing"))
	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf))
}

func TestExecuteRefresh(t *testing.T) {
	const v1 = "s3://b/orders/metadata/v1.metadata.json"
	tests := []struct {
		name        string
		next        string
		nextUUID    string
		dropPrev    bool
		wantStale   bool
		wantUpdates int
	}{
		{name: "unchanged_is_noop", next: v1, nextUUID: uuidA},
		{name: "new_snapshot_updates", next: "s3://b/orders/metadata/v2.metadata.json", nextUUID: uuidA, wantUpdates: 1},
		{name: "recreated_source_is_stale", next: "s3://b/orders2/metadata/v1.metadata.json", nextUUID: uuidB, wantStale: true},
		{name: "missing_previous_metadata_repairs", next: "s3://b/orders/metadata/v2.metadata.json", nextUUID: uuidB, dropPrev: true, wantUpdates: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, fg, objs := setup(t)
			ctx := context.Background()
			fg.databases["sales"] = true
			objs.Put(v1, testutil.IcebergMetadataJSON(uuidA, "s3://b/orders"))
			require.NoError(t, p.ExecuteDDL(ctx, target("main.sales.orders", v1)))
			if tt.dropPrev {
				objs = testutil.NewMemObjects()
				p.meta = objs
			}
			objs.Put(tt.next, testutil.IcebergMetadataJSON(tt.nextUUID, "s3://b/orders"))

			err := p.ExecuteRefresh(ctx, target("main.sales.orders", tt.next))
			if tt.wantStale {
				var se *domain.StalePointerError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, "main.sales.orders", se.Name)
				assert.Equal(t, v1, fg.tables["sales.orders"].Parameters["metadata_location"])
				return
			}
			require.NoError(t, err)
			require.Len(t, fg.updates, tt.wantUpdates)
			if tt.wantUpdates > 0 {
				upd := fg.updates[0]
				assert.Equal(t, "1", aws.ToString(upd.VersionId))
				assert.Equal(t, tt.next, upd.TableInput.Parameters["metadata_location"])
				assert.Equal(t, v1, upd.TableInput.Parameters["previous_metadata_location"])
			}
		})
	}
}

func TestExecuteReplace(t *testing.T) {
	p, fg, objs := setup(t)
	ctx := context.Background()
	fg.databases["sales"] = true
	objs.Put("s3://b/orders/metadata/v1.metadata.json", testutil.IcebergMetadataJSON(uuidA, "s3://b/orders"))
	objs.Put("s3://b/orders2/metadata/v1.metadata.json", testutil.IcebergMetadataJSON(uuidB, "s3://b/orders2"))
	require.NoError(t, p.ExecuteDDL(ctx, target("main.sales.orders", "s3://b/orders/metadata/v1.metadata.json")))

	tgt := target("main.sales.orders", "s3://b/orders2/metadata/v1.metadata.json")
	require.NoError(t, p.ExecuteReplace(ctx, tgt))
	require.NoError(t, p.ExecuteRefresh(ctx, tgt))

	tbl := fg.tables["sales.orders"]
	assert.Equal(t, "s3://b/orders2/metadata/v1.metadata.json", tbl.Parameters["metadata_location"])
	assert.Equal(t, "s3://b/orders2", aws.ToString(tbl.StorageDescriptor.Location))
	assert.Empty(t, fg.updates)

	require.NoError(t, p.ExecuteReplace(ctx, target("main.sales.fresh", "s3://b/orders2/metadata/v1.metadata.json")), "replace of a missing table registers it")
}

func TestStatementBuilder(t *testing.T) {
	p := New("aws", Config{Region: "eu-west-1"}, Deps{})
	assert.True(t, p.SupportsFormat(domain.FormatIceberg))
	assert.False(t, p.SupportsFormat(domain.FormatDelta))

	stmts, err := p.TableStatements(context.Background(), domain.MustParseFQTN("x.sales.orders"),
		target("main.sales.orders", "s3://b/v1.metadata.json").Source.(*domain.TableSource))
	require.NoError(t, err)
	assert.Equal(t, "GLUE CREATE TABLE sales.orders metadata_location='s3://b/v1.metadata.json'", stmts.Create)

	_, err = p.ViewStatement(domain.MustParseFQTN("x.sales.v"), "SELECT 1")
	require.Error(t, err)
}
