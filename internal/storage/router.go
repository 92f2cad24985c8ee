// Package storage publishes finished category files to local or object storage backends.
package storage

import (
	"path"
	"strings"

	"github.com/jittakal/logavro/pkg/event"
	"github.com/jittakal/logavro/pkg/storage"
)

// Ensure implementation satisfies interface.
var _ storage.Router = (*DefaultRouter)(nil)

// DefaultBaseName returns the file name, without extension, of a category output file.
func DefaultBaseName(c event.Category) string {
	switch c {
	case event.CategoryRecommendation:
		return "recommendation_requests"
	case event.CategoryMovie:
		return "movie_watches"
	case event.CategoryRating:
		return "movie_ratings"
	default:
		return c.Slug()
	}
}

// DefaultRouter lays out keys as basePath/category/file.
type DefaultRouter struct {
	basePath  string
	fileNames map[event.Category]string
}

// NewRouter creates a router. Categories without an entry in fileNames use
// DefaultBaseName with the given extension.
func NewRouter(basePath, extension string, fileNames map[event.Category]string) *DefaultRouter {
	names := make(map[event.Category]string, len(event.Categories()))
	for _, c := range event.Categories() {
		if name := fileNames[c]; name != "" {
			names[c] = name
			continue
		}
		names[c] = DefaultBaseName(c) + extension
	}

	return &DefaultRouter{
		basePath:  strings.Trim(basePath, "/"),
		fileNames: names,
	}
}

// FileName returns the output file name for a category.
func (r *DefaultRouter) FileName(c event.Category) string {
	if name, ok := r.fileNames[c]; ok {
		return name
	}
	return c.Slug()
}

// Key returns the storage key for a category file.
// Format: basePath/category/file
func (r *DefaultRouter) Key(c event.Category) string {
	return path.Join(r.basePath, c.Slug(), r.FileName(c))
}

// objectKey strips a scheme://container/ prefix from a key.
// Keys without the scheme are returned unchanged, minus any leading slash.
func objectKey(scheme, key string) string {
	prefix := scheme + "://"
	if strings.HasPrefix(key, prefix) {
		parts := strings.SplitN(strings.TrimPrefix(key, prefix), "/", 2)
		if len(parts) == 2 {
			key = parts[1]
		} else {
			key = ""
		}
	}
	return strings.TrimPrefix(key, "/")
}

// contentType returns the MIME type used for an uploaded category file.
func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".parquet"):
		return "application/vnd.apache.parquet"
	case strings.HasSuffix(key, ".avro"):
		return "application/avro"
	default:
		return "application/octet-stream"
	}
}
