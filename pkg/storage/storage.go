// Package storage defines interfaces for publishing category files.
//
// This package provides abstractions for copying finished category files
// to object storage backends (S3, GCS, Azure Blob, local filesystem) and
// fetching them back for the read path.
package storage

import (
	"context"

	"github.com/jittakal/logavro/pkg/event"
)

// Uploader copies a local file to a storage key.
type Uploader interface {
	// Upload copies the file at localPath to key.
	// Returns the number of bytes uploaded.
	Upload(ctx context.Context, localPath, key string) (int64, error)

	// Close closes the uploader and releases resources.
	Close() error
}

// Downloader copies a storage key to a local file.
type Downloader interface {
	// Download copies key to localPath, replacing any existing file.
	// Returns the number of bytes downloaded.
	Download(ctx context.Context, key, localPath string) (int64, error)
}

// Backend is a storage backend that can both upload and download.
type Backend interface {
	Uploader
	Downloader
}

// Router determines the storage key and local file name for a category.
type Router interface {
	// FileName returns the output file name for a category.
	FileName(c event.Category) string

	// Key returns the storage key for a category file.
	Key(c event.Category) string
}
