package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/port"
)

var _ port.BlobStore = (*BlobStore)(nil)

type BlobStore struct {
	mock.Mock
}

func (m *BlobStore) Upload(ctx context.Context, localPath, key string) (domain.UploadResult, error) {
	args := m.Called(ctx, localPath, key)
	return args.Get(0).(domain.UploadResult), args.Error(1)
}
