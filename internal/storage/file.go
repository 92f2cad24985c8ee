package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Backend = (*FileBackend)(nil)

// MetricsCollector defines metrics operations for storage.
type MetricsCollector interface {
	ObserveStorageDuration(backend, operation string, seconds float64)
	IncStorageErrors(backend, operation string)
}

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	BasePath string
}

// FileBackend copies category files into a directory tree on the local filesystem.
// Copies are written to a temporary file and renamed into place.
type FileBackend struct {
	basePath string
	logger   *slog.Logger
	metrics  MetricsCollector
}

// NewFileBackend creates a filesystem backend rooted at cfg.BasePath.
func NewFileBackend(cfg FileConfig, logger *slog.Logger, metrics MetricsCollector) (*FileBackend, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("file backend requires a base path")
	}
	if err := os.MkdirAll(cfg.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	logger.Info("filesystem backend created", "base_path", cfg.BasePath)

	return &FileBackend{
		basePath: cfg.BasePath,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Upload copies localPath to basePath/key.
func (b *FileBackend) Upload(ctx context.Context, localPath, key string) (int64, error) {
	dest := filepath.Join(b.basePath, filepath.FromSlash(objectKey("file", key)))
	n, err := b.copy(ctx, "upload", localPath, dest)
	if err != nil {
		return 0, err
	}
	b.logger.Info("copied file", "source", localPath, "path", dest, "bytes", n)
	return n, nil
}

// Download copies basePath/key to localPath.
func (b *FileBackend) Download(ctx context.Context, key, localPath string) (int64, error) {
	src := filepath.Join(b.basePath, filepath.FromSlash(objectKey("file", key)))
	n, err := b.copy(ctx, "download", src, localPath)
	if err != nil {
		return 0, err
	}
	b.logger.Info("copied file", "source", src, "path", localPath, "bytes", n)
	return n, nil
}

func (b *FileBackend) copy(ctx context.Context, operation, src, dest string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	start := time.Now()

	in, err := os.Open(src)
	if err != nil {
		return 0, b.fail("open", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, b.fail("open", src, err)
	}

	// Copying a file onto itself leaves it in place.
	if out, err := os.Stat(dest); err == nil && os.SameFile(info, out) {
		return info.Size(), nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, b.fail("mkdir", dest, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return 0, b.fail("create", dest, err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, in)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, b.fail(operation, dest, err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, b.fail(operation, dest, err)
	}

	if b.metrics != nil {
		b.metrics.ObserveStorageDuration("file", operation, time.Since(start).Seconds())
	}
	return n, nil
}

func (b *FileBackend) fail(operation, path string, err error) error {
	if b.metrics != nil {
		b.metrics.IncStorageErrors("file", operation)
	}
	return &errors.StorageError{Operation: operation, Path: path, Err: err}
}

// Close closes the backend.
func (b *FileBackend) Close() error {
	b.logger.Info("closing filesystem backend")
	return nil
}
