package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jittakal/logavro/pkg/event"
)

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name    string
		cfg     BackendConfig
		wantErr bool
	}{
		{"file", BackendConfig{Type: BackendFile, File: FileConfig{BasePath: t.TempDir()}}, false},
		{"empty type means file", BackendConfig{File: FileConfig{BasePath: t.TempDir()}}, false},
		{"file without path", BackendConfig{Type: BackendFile}, true},
		{"azure", BackendConfig{Type: BackendAzure, Azure: AzureConfig{AccountName: "a", AccountKey: "dGVzdGtleQ==", ContainerName: "c"}}, false},
		{"s3 without bucket", BackendConfig{Type: BackendS3}, true},
		{"unknown", BackendConfig{Type: "ftp"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackend(context.Background(), tt.cfg, testLogger(), nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewBackend() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if _, ok := b.(*RetryingBackend); !ok {
					t.Errorf("NewBackend() = %T, want *RetryingBackend", b)
				}
				_ = b.Close()
			}
		})
	}
}

func TestUploadAllDownloadAll(t *testing.T) {
	ctx := context.Background()
	store := t.TempDir()
	b, err := NewFileBackend(FileConfig{BasePath: store}, testLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}
	router := NewRouter("logs", ".avro", nil)

	outDir := t.TempDir()
	for _, c := range event.Categories() {
		writeFile(t, filepath.Join(outDir, router.FileName(c)), c.Slug())
	}

	uploaded, err := UploadAll(ctx, b, router, outDir)
	if err != nil {
		t.Fatalf("UploadAll() error = %v", err)
	}
	if len(uploaded) != 3 {
		t.Fatalf("uploaded %d files, want 3", len(uploaded))
	}
	if uploaded[1].Key != "logs/movie/movie_watches.avro" || uploaded[1].Bytes != int64(len("movie")) {
		t.Errorf("uploaded[1] = %+v", uploaded[1])
	}

	restore := t.TempDir()
	downloaded, err := DownloadAll(ctx, b, router, restore)
	if err != nil {
		t.Fatalf("DownloadAll() error = %v", err)
	}
	if len(downloaded) != 3 {
		t.Fatalf("downloaded %d files, want 3", len(downloaded))
	}
	got, _ := os.ReadFile(filepath.Join(restore, "movie_ratings.avro"))
	if string(got) != "rating" {
		t.Errorf("restored rating file = %q", got)
	}
}

func TestUploadAll_StopsOnError(t *testing.T) {
	b, err := NewFileBackend(FileConfig{BasePath: t.TempDir()}, testLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}
	router := NewRouter("", ".avro", nil)

	outDir := t.TempDir()
	writeFile(t, filepath.Join(outDir, router.FileName(event.CategoryRecommendation)), "r")

	uploaded, err := UploadAll(context.Background(), b, router, outDir)
	if err == nil {
		t.Fatal("expected error for missing movie file")
	}
	if len(uploaded) != 1 {
		t.Errorf("uploaded %d files before failing, want 1", len(uploaded))
	}
}
