// Package objstore reads small objects, mostly iceberg metadata files, from
// S3, GCS, Azure Blob Storage and the local filesystem.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"google.golang.org/api/option"
)

// Reader fetches the bytes of an object addressed by a storage URI.
type Reader interface {
	ReadObject(ctx context.Context, uri string) ([]byte, error)
}

// Options configures credentials for each backend. Empty values fall back to
// the backend's default credential chain.
type Options struct {
	S3Region    string
	S3Endpoint  string
	S3KeyID     string
	S3Secret    string
	S3PathStyle bool

	GCSCredentialsFile string

	AzureAccountName string
	AzureAccountKey  string
}

// Location is a parsed storage URI.
type Location struct {
	Scheme string
	Bucket string
	Key    string
	// Account is the Azure storage account, when the URI names one.
	Account string
}

// ParseLocation splits a storage URI into scheme, bucket and key. Supported
// schemes are s3, s3a, gs, abfss, az and file; a bare path is treated as a
// local file.
func ParseLocation(uri string) (Location, error) {
	if uri == "" {
		return Location{}, fmt.Errorf("empty storage location")
	}
	if !strings.Contains(uri, "://") {
		return Location{Scheme: "file", Key: uri}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("parse storage location %q: %w", uri, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	switch scheme := strings.ToLower(u.Scheme); scheme {
	case "s3", "s3a":
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("invalid S3 location %q: expected s3://bucket/key", uri)
		}
		return Location{Scheme: "s3", Bucket: u.Host, Key: key}, nil
	case "gs":
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("invalid GCS location %q: expected gs://bucket/key", uri)
		}
		return Location{Scheme: "gs", Bucket: u.Host, Key: key}, nil
	case "abfss", "abfs":
		// abfss://container@account.dfs.core.windows.net/key
		if u.User == nil || u.User.Username() == "" || key == "" {
			return Location{}, fmt.Errorf("invalid Azure location %q: expected abfss://container@account.dfs.core.windows.net/key", uri)
		}
		container := u.User.Username()
		account, _, _ := strings.Cut(u.Host, ".")
		return Location{Scheme: "azure", Bucket: container, Key: key, Account: account}, nil
	case "az", "azure":
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("invalid Azure location %q: expected az://container/key", uri)
		}
		return Location{Scheme: "azure", Bucket: u.Host, Key: key}, nil
	case "file":
		return Location{Scheme: "file", Key: u.Path}, nil
	default:
		return Location{}, fmt.Errorf("unsupported storage scheme %q in %q", u.Scheme, uri)
	}
}

// Store is a Reader over every supported backend. Backend clients are
// created on first use.
type Store struct {
	opts   Options
	logger *slog.Logger

	s3Once  sync.Once
	s3      *s3.Client
	s3Err   error
	gcsOnce sync.Once
	gcs     *storage.Client
	gcsErr  error
	azMu    sync.Mutex
	az      map[string]*azblob.Client
}

var _ Reader = (*Store)(nil)

// New creates a Store.
func New(opts Options, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		opts:   opts,
		logger: logger.With("component", "objstore"),
		az:     make(map[string]*azblob.Client),
	}
}

// ReadObject returns the full contents of the object at uri. A missing
// object yields an error wrapping os.ErrNotExist.
func (s *Store) ReadObject(ctx context.Context, uri string) ([]byte, error) {
	loc, err := ParseLocation(uri)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("reading object", "uri", uri)
	switch loc.Scheme {
	case "s3":
		return s.readS3(ctx, loc)
	case "gs":
		return s.readGCS(ctx, loc)
	case "azure":
		return s.readAzure(ctx, loc)
	default:
		data, err := os.ReadFile(loc.Key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", uri, err)
		}
		return data, nil
	}
}

func (s *Store) s3Client(ctx context.Context) (*s3.Client, error) {
	s.s3Once.Do(func() {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if s.opts.S3Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(s.opts.S3Region))
		}
		if s.opts.S3KeyID != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(s.opts.S3KeyID, s.opts.S3Secret, ""),
			))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			s.s3Err = fmt.Errorf("load AWS config: %w", err)
			return
		}
		s.s3 = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if s.opts.S3Endpoint != "" {
				endpoint := s.opts.S3Endpoint
				if !strings.Contains(endpoint, "://") {
					endpoint = "https://" + endpoint
				}
				o.BaseEndpoint = aws.String(endpoint)
			}
			o.UsePathStyle = s.opts.S3PathStyle
		})
	})
	return s.s3, s.s3Err
}

func (s *Store) readS3(ctx context.Context, loc Location) ([]byte, error) {
	client, err := s.s3Client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("get s3://%s/%s: %w", loc.Bucket, loc.Key, os.ErrNotExist)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", loc.Bucket, loc.Key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *Store) gcsClient(ctx context.Context) (*storage.Client, error) {
	s.gcsOnce.Do(func() {
		var opts []option.ClientOption
		if s.opts.GCSCredentialsFile != "" {
			opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, s.opts.GCSCredentialsFile))
		}
		s.gcs, s.gcsErr = storage.NewClient(ctx, opts...)
		if s.gcsErr != nil {
			s.gcsErr = fmt.Errorf("create GCS client: %w", s.gcsErr)
		}
	})
	return s.gcs, s.gcsErr
}

func (s *Store) readGCS(ctx context.Context, loc Location) ([]byte, error) {
	client, err := s.gcsClient(ctx)
	if err != nil {
		return nil, err
	}
	r, err := client.Bucket(loc.Bucket).Object(loc.Key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("open gs://%s/%s: %w", loc.Bucket, loc.Key, os.ErrNotExist)
		}
		return nil, fmt.Errorf("open gs://%s/%s: %w", loc.Bucket, loc.Key, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *Store) azureClient(account string) (*azblob.Client, error) {
	if account == "" {
		account = s.opts.AzureAccountName
	}
	if account == "" {
		return nil, fmt.Errorf("azure storage account is required")
	}
	s.azMu.Lock()
	defer s.azMu.Unlock()
	if c, ok := s.az[account]; ok {
		return c, nil
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", account)
	var (
		client *azblob.Client
		err    error
	)
	if s.opts.AzureAccountKey != "" {
		cred, cerr := azblob.NewSharedKeyCredential(account, s.opts.AzureAccountKey)
		if cerr != nil {
			return nil, fmt.Errorf("create shared key credential: %w", cerr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	} else {
		client, err = azblob.NewClientWithNoCredential(serviceURL, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	s.az[account] = client
	return client, nil
}

func (s *Store) readAzure(ctx context.Context, loc Location) ([]byte, error) {
	client, err := s.azureClient(loc.Account)
	if err != nil {
		return nil, err
	}
	resp, err := client.DownloadStream(ctx, loc.Bucket, loc.Key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, fmt.Errorf("download %s/%s: %w", loc.Bucket, loc.Key, os.ErrNotExist)
		}
		return nil, fmt.Errorf("download %s/%s: %w", loc.Bucket, loc.Key, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Close releases backend clients.
func (s *Store) Close() error {
	if s.gcs != nil {
		return s.gcs.Close()
	}
	return nil
}
