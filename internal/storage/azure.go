package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Backend = (*AzureBackend)(nil)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	Endpoint      string
}

// azureBlobs is the subset of *azblob.Client used by the backend.
type azureBlobs interface {
	UploadFile(ctx context.Context, containerName, blobName string, file *os.File, o *azblob.UploadFileOptions) (azblob.UploadFileResponse, error)
	DownloadFile(ctx context.Context, containerName, blobName string, file *os.File, o *azblob.DownloadFileOptions) (int64, error)
}

// AzureBackend uploads category files to Azure Blob Storage.
type AzureBackend struct {
	client        azureBlobs
	containerName string
	logger        *slog.Logger
	metrics       MetricsCollector
}

// connectionString builds an account-key connection string.
// A custom endpoint replaces the public endpoint suffix, e.g. for Azurite.
func (cfg AzureConfig) connectionString() string {
	if cfg.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			cfg.AccountName, cfg.AccountKey, cfg.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		cfg.AccountName, cfg.AccountKey)
}

// NewAzureBackend creates an Azure Blob Storage backend.
func NewAzureBackend(cfg AzureConfig, logger *slog.Logger, metrics MetricsCollector) (*AzureBackend, error) {
	if cfg.ContainerName == "" {
		return nil, fmt.Errorf("azure backend requires a container name")
	}

	client, err := azblob.NewClientFromConnectionString(cfg.connectionString(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	logger.Info("Azure backend created", "container", cfg.ContainerName, "account", cfg.AccountName)

	return &AzureBackend{
		client:        client,
		containerName: cfg.ContainerName,
		logger:        logger,
		metrics:       metrics,
	}, nil
}

// Upload uploads localPath to the container under key.
func (b *AzureBackend) Upload(ctx context.Context, localPath, key string) (int64, error) {
	start := time.Now()
	key = objectKey("wasbs", key)

	file, err := os.Open(localPath)
	if err != nil {
		return 0, b.fail("open", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, b.fail("open", localPath, err)
	}

	blobType := contentType(key)
	_, err = b.client.UploadFile(ctx, b.containerName, key, file, &azblob.UploadFileOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &blobType},
	})
	if err != nil {
		return 0, b.fail("upload", key, err)
	}

	duration := time.Since(start)
	if b.metrics != nil {
		b.metrics.ObserveStorageDuration("azure", "upload", duration.Seconds())
	}

	b.logger.Info("uploaded file to Azure Blob",
		"container", b.containerName,
		"blob", key,
		"file_size", info.Size(),
		"total_duration_ms", duration.Milliseconds(),
	)
	return info.Size(), nil
}

// Download downloads the blob at key to localPath.
func (b *AzureBackend) Download(ctx context.Context, key, localPath string) (int64, error) {
	start := time.Now()
	key = objectKey("wasbs", key)

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return 0, b.fail("mkdir", localPath, err)
	}
	file, err := os.Create(localPath)
	if err != nil {
		return 0, b.fail("create", localPath, err)
	}
	defer file.Close()

	n, err := b.client.DownloadFile(ctx, b.containerName, key, file, nil)
	if err != nil {
		return 0, b.fail("download", key, err)
	}

	if b.metrics != nil {
		b.metrics.ObserveStorageDuration("azure", "download", time.Since(start).Seconds())
	}
	b.logger.Info("downloaded file from Azure Blob", "container", b.containerName, "blob", key, "bytes", n)
	return n, nil
}

func (b *AzureBackend) fail(operation, path string, err error) error {
	if b.metrics != nil {
		b.metrics.IncStorageErrors("azure", operation)
	}
	return &errors.StorageError{Operation: operation, Path: path, Err: err}
}

// Close closes the Azure backend.
func (b *AzureBackend) Close() error {
	b.logger.Info("Azure backend closed")
	return nil
}
