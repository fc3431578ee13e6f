// Package s3 implements batch.ObjectStore on Amazon S3 or an S3 compatible
// service such as MinIO.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	s3sdk "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/drorzp/justel-pipeline/batch"
)

// deleteBatchSize is the DeleteObjects limit.
const deleteBatchSize = 1000

// ErrBucketRequired is returned when no bucket is configured.
var ErrBucketRequired = errors.New("bucket is required")

// Config holds the connection settings. Credentials come from the default
// AWS chain (environment, shared files, instance role).
type Config struct {
	Bucket   string
	Region   string
	Endpoint string // custom endpoint, e.g. http://localhost:9000 for MinIO

	// UsePathStyle addresses buckets as endpoint/bucket. Required by most
	// S3 compatible services.
	UsePathStyle bool

	// Anonymous disables request signing.
	Anonymous bool

	// HTTPClient overrides the SDK's HTTP client.
	HTTPClient s3sdk.HTTPClient
}

// Store is a batch.ObjectStore backed by one bucket.
type Store struct {
	client *s3sdk.Client
	bucket string
	logger *slog.Logger
}

var _ batch.ObjectStore = (*Store)(nil)

// New loads the AWS configuration and creates a Store.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}
	if logger == nil {
		logger = slog.Default()
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}

	client := s3sdk.NewFromConfig(awsCfg, func(o *s3sdk.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Anonymous {
			o.Credentials = aws.AnonymousCredentials{}
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
	})
	return NewWithClient(client, cfg.Bucket, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *s3sdk.Client, bucket string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		bucket: bucket,
		logger: logger.With("component", "s3", "bucket", bucket),
	}
}

// List implements batch.ObjectStore.
func (s *Store) List(ctx context.Context, prefix string) ([]batch.ObjectInfo, error) {
	input := &s3sdk.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var out []batch.ObjectInfo
	pages := s3sdk.NewListObjectsV2Paginator(s.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			info := batch.ObjectInfo{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			out = append(out, info)
		}
	}
	s.logger.Debug("listed objects", "prefix", prefix, "count", len(out))
	return out, nil
}

// Download implements batch.ObjectStore.
func (s *Store) Download(ctx context.Context, key, dest string) error {
	resp, err := s.client.GetObject(ctx, &s3sdk.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, resp.Body)
	if err != nil {
		f.Close()
		return fmt.Errorf("download s3://%s/%s: %w", s.bucket, key, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.logger.Debug("downloaded object", "key", key, "bytes", n)
	return nil
}

// Upload implements batch.ObjectStore.
func (s *Store) Upload(ctx context.Context, key, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = s.client.PutObject(ctx, &s3sdk.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	s.logger.Debug("uploaded object", "key", key)
	return nil
}

// DeleteWithSuffix implements batch.ObjectStore. Keys are deleted in
// batches of 1000, the DeleteObjects maximum.
func (s *Store) DeleteWithSuffix(ctx context.Context, prefix, suffix string) (int, error) {
	objects, err := s.List(ctx, prefix)
	if err != nil {
		return 0, err
	}

	var ids []types.ObjectIdentifier
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, suffix) {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(obj.Key)})
		}
	}

	deleted := 0
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(ids))
		resp, err := s.client.DeleteObjects(ctx, &s3sdk.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: ids[start:end],
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return deleted, fmt.Errorf("delete objects in s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, e := range resp.Errors {
			s.logger.Warn("object not deleted",
				"key", aws.ToString(e.Key),
				"code", aws.ToString(e.Code),
				"message", aws.ToString(e.Message))
		}
		deleted += (end - start) - len(resp.Errors)
	}
	s.logger.Info("deleted objects", "prefix", prefix, "suffix", suffix, "count", deleted)
	return deleted, nil
}
