package port

import (
	"context"

	"github.com/bnema/reel/internal/domain"
)

// BlobStore persists a local artifact under key and returns where it can be
// fetched from.
type BlobStore interface {
	Upload(ctx context.Context, localPath, key string) (domain.UploadResult, error)
}
