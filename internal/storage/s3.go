package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Backend = (*S3Backend)(nil)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type s3Downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

// S3Backend uploads category files to S3 with multipart uploads and optional SSE.
type S3Backend struct {
	uploader    s3Uploader
	downloader  s3Downloader
	bucket      string
	sseEnabled  bool
	sseKMSKeyID string
	logger      *slog.Logger
	metrics     MetricsCollector
}

// NewS3Backend creates an S3 backend from the default AWS credential chain.
func NewS3Backend(ctx context.Context, cfg S3Config, logger *slog.Logger, metrics MetricsCollector) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 backend requires a bucket")
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024 // 10MB parts
		u.Concurrency = 5
	})
	downloader := manager.NewDownloader(client)

	logger.Info("S3 backend created",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"sse_enabled", cfg.SSEEnabled,
	)

	return newS3Backend(uploader, downloader, cfg, logger, metrics), nil
}

func newS3Backend(up s3Uploader, down s3Downloader, cfg S3Config, logger *slog.Logger, metrics MetricsCollector) *S3Backend {
	return &S3Backend{
		uploader:    up,
		downloader:  down,
		bucket:      cfg.Bucket,
		sseEnabled:  cfg.SSEEnabled,
		sseKMSKeyID: cfg.SSEKMSKeyID,
		logger:      logger,
		metrics:     metrics,
	}
}

// putObjectInput builds the upload request, adding SSE settings when enabled.
func (b *S3Backend) putObjectInput(key string, body *os.File) *s3.PutObjectInput {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType(key)),
	}

	if b.sseEnabled {
		if b.sseKMSKeyID != "" {
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			input.SSEKMSKeyId = aws.String(b.sseKMSKeyID)
		} else {
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}
	return input
}

// Upload uploads localPath to s3://bucket/key.
func (b *S3Backend) Upload(ctx context.Context, localPath, key string) (int64, error) {
	start := time.Now()
	key = objectKey("s3", key)

	file, err := os.Open(localPath)
	if err != nil {
		return 0, b.fail("open", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, b.fail("open", localPath, err)
	}

	result, err := b.uploader.Upload(ctx, b.putObjectInput(key, file))
	if err != nil {
		return 0, b.fail("upload", key, err)
	}

	duration := time.Since(start)
	if b.metrics != nil {
		b.metrics.ObserveStorageDuration("s3", "upload", duration.Seconds())
	}

	b.logger.Info("uploaded file to S3",
		"bucket", b.bucket,
		"key", key,
		"file_size", info.Size(),
		"location", result.Location,
		"total_duration_ms", duration.Milliseconds(),
	)
	return info.Size(), nil
}

// Download downloads s3://bucket/key to localPath.
func (b *S3Backend) Download(ctx context.Context, key, localPath string) (int64, error) {
	start := time.Now()
	key = objectKey("s3", key)

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return 0, b.fail("mkdir", localPath, err)
	}
	file, err := os.Create(localPath)
	if err != nil {
		return 0, b.fail("create", localPath, err)
	}
	defer file.Close()

	n, err := b.downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, b.fail("download", key, err)
	}

	if b.metrics != nil {
		b.metrics.ObserveStorageDuration("s3", "download", time.Since(start).Seconds())
	}
	b.logger.Info("downloaded file from S3", "bucket", b.bucket, "key", key, "bytes", n)
	return n, nil
}

func (b *S3Backend) fail(operation, path string, err error) error {
	if b.metrics != nil {
		b.metrics.IncStorageErrors("s3", operation)
	}
	return &errors.StorageError{Operation: operation, Path: path, Err: err}
}

// Close closes the S3 backend.
func (b *S3Backend) Close() error {
	b.logger.Info("closing S3 backend")
	return nil
}
