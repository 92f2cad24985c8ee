package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jittakal/logavro/internal/errors"
	pkgstorage "github.com/jittakal/logavro/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ pkgstorage.Backend = (*GCSBackend)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// gcsObjects opens object streams in a bucket.
type gcsObjects interface {
	NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	Close() error
}

type gcsClient struct {
	client *storage.Client
}

func (c gcsClient) NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
	w := c.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

func (c gcsClient) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return c.client.Bucket(bucket).Object(object).NewReader(ctx)
}

func (c gcsClient) Close() error {
	return c.client.Close()
}

// GCSBackend uploads category files to Google Cloud Storage.
type GCSBackend struct {
	objects gcsObjects
	bucket  string
	logger  *slog.Logger
	metrics MetricsCollector
}

// gcsClientOptions selects the endpoint and authentication method.
// Explicit JSON credentials take precedence over a credentials file.
func gcsClientOptions(cfg GCSConfig, logger *slog.Logger) []option.ClientOption {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	switch {
	case cfg.UseDefaultCredential:
		logger.Info("using default GCP credentials")
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		logger.Info("using GCP credentials from JSON string")
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		logger.Info("using GCP credentials from file", "file", cfg.CredentialsFile)
	default:
		logger.Info("no explicit credentials provided, using default GCP credentials")
	}
	return opts
}

// NewGCSBackend creates a Google Cloud Storage backend.
func NewGCSBackend(ctx context.Context, cfg GCSConfig, logger *slog.Logger, metrics MetricsCollector) (*GCSBackend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs backend requires a bucket")
	}

	client, err := storage.NewClient(ctx, gcsClientOptions(cfg, logger)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	logger.Info("GCS backend created", "bucket", cfg.Bucket, "project_id", cfg.ProjectID)

	return &GCSBackend{
		objects: gcsClient{client: client},
		bucket:  cfg.Bucket,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Upload uploads localPath to gs://bucket/key.
func (b *GCSBackend) Upload(ctx context.Context, localPath, key string) (int64, error) {
	start := time.Now()
	key = objectKey("gs", key)

	file, err := os.Open(localPath)
	if err != nil {
		return 0, b.fail("open", localPath, err)
	}
	defer file.Close()

	w := b.objects.NewWriter(ctx, b.bucket, key, contentType(key))
	n, err := io.Copy(w, file)
	if err != nil {
		_ = w.Close()
		return 0, b.fail("upload", key, err)
	}

	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return 0, b.fail("upload", key, err)
	}

	duration := time.Since(start)
	if b.metrics != nil {
		b.metrics.ObserveStorageDuration("gcs", "upload", duration.Seconds())
	}

	b.logger.Info("uploaded file to GCS",
		"bucket", b.bucket,
		"object", key,
		"bytes_written", n,
		"total_duration_ms", duration.Milliseconds(),
	)
	return n, nil
}

// Download downloads gs://bucket/key to localPath.
func (b *GCSBackend) Download(ctx context.Context, key, localPath string) (int64, error) {
	start := time.Now()
	key = objectKey("gs", key)

	r, err := b.objects.NewReader(ctx, b.bucket, key)
	if err != nil {
		return 0, b.fail("download", key, err)
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return 0, b.fail("mkdir", localPath, err)
	}
	file, err := os.Create(localPath)
	if err != nil {
		return 0, b.fail("create", localPath, err)
	}
	defer file.Close()

	n, err := io.Copy(file, r)
	if err != nil {
		return 0, b.fail("download", key, err)
	}

	if b.metrics != nil {
		b.metrics.ObserveStorageDuration("gcs", "download", time.Since(start).Seconds())
	}
	b.logger.Info("downloaded file from GCS", "bucket", b.bucket, "object", key, "bytes", n)
	return n, nil
}

func (b *GCSBackend) fail(operation, path string, err error) error {
	if b.metrics != nil {
		b.metrics.IncStorageErrors("gcs", operation)
	}
	return &errors.StorageError{Operation: operation, Path: path, Err: err}
}

// Close closes the GCS client.
func (b *GCSBackend) Close() error {
	b.logger.Info("closing GCS backend")
	if b.objects != nil {
		return b.objects.Close()
	}
	return nil
}
