package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jittakal/logavro/pkg/event"
	"github.com/jittakal/logavro/pkg/storage"
)

// Backend names accepted by NewBackend.
const (
	BackendFile  = "file"
	BackendS3    = "s3"
	BackendGCS   = "gcs"
	BackendAzure = "azure"
)

// BackendConfig selects and configures a storage backend.
type BackendConfig struct {
	Type  string
	File  FileConfig
	S3    S3Config
	GCS   GCSConfig
	Azure AzureConfig
	Retry RetryConfig
}

// NewBackend creates the configured backend wrapped with retries.
func NewBackend(ctx context.Context, cfg BackendConfig, logger *slog.Logger, metrics MetricsCollector) (storage.Backend, error) {
	var (
		backend storage.Backend
		err     error
	)

	switch cfg.Type {
	case BackendFile, "":
		backend, err = NewFileBackend(cfg.File, logger, metrics)
	case BackendS3:
		backend, err = NewS3Backend(ctx, cfg.S3, logger, metrics)
	case BackendGCS:
		backend, err = NewGCSBackend(ctx, cfg.GCS, logger, metrics)
	case BackendAzure:
		backend, err = NewAzureBackend(cfg.Azure, logger, metrics)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	return WithRetry(backend, cfg.Retry, logger), nil
}

// Transfer is the outcome of copying one category file.
type Transfer struct {
	Category event.Category
	Key      string
	Bytes    int64
}

// UploadAll uploads every category file found in dir under its routed key.
// It stops at the first failure.
func UploadAll(ctx context.Context, up storage.Uploader, router storage.Router, dir string) ([]Transfer, error) {
	transfers := make([]Transfer, 0, len(event.Categories()))
	for _, c := range event.Categories() {
		key := router.Key(c)
		n, err := up.Upload(ctx, filepath.Join(dir, router.FileName(c)), key)
		if err != nil {
			return transfers, fmt.Errorf("failed to upload %s file: %w", c.Slug(), err)
		}
		transfers = append(transfers, Transfer{Category: c, Key: key, Bytes: n})
	}
	return transfers, nil
}

// DownloadAll downloads every category file into dir.
func DownloadAll(ctx context.Context, down storage.Downloader, router storage.Router, dir string) ([]Transfer, error) {
	transfers := make([]Transfer, 0, len(event.Categories()))
	for _, c := range event.Categories() {
		key := router.Key(c)
		n, err := down.Download(ctx, key, filepath.Join(dir, router.FileName(c)))
		if err != nil {
			return transfers, fmt.Errorf("failed to download %s file: %w", c.Slug(), err)
		}
		transfers = append(transfers, Transfer{Category: c, Key: key, Bytes: n})
	}
	return transfers, nil
}
