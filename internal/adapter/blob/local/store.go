package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bnema/reel/internal/adapter/blob"
	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/port"
	"github.com/bnema/reel/internal/validation"
)

// Store keeps artifacts under a base directory and hands out URLs below
// baseURL. The HTTP server exposes the directory when this driver is used.
type Store struct {
	basePath string
	baseURL  string
}

func NewStore(basePath, baseURL string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &Store{
		basePath: basePath,
		baseURL:  baseURL,
	}, nil
}

func (s *Store) Dir() string {
	return s.basePath
}

// Upload copies localPath to basePath/key. The file is written next to its
// destination and renamed into place so readers never see a partial artifact.
func (s *Store) Upload(ctx context.Context, localPath, key string) (domain.UploadResult, error) {
	if err := validation.ValidateKey(key); err != nil {
		return domain.UploadResult{}, fmt.Errorf("upload %q: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return domain.UploadResult{}, err
	}

	destPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return domain.UploadResult{}, fmt.Errorf("failed to create directory: %w", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".upload-*")
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("failed to create destination file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("failed to copy file: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return domain.UploadResult{}, fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return domain.UploadResult{}, fmt.Errorf("failed to move file into place: %w", err)
	}

	return domain.UploadResult{
		URL:  blob.PublicURL(s.baseURL, key),
		Size: size,
		ID:   key,
	}, nil
}

var _ port.BlobStore = (*Store)(nil)
