package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/port"
)

var _ port.VideoStore = (*VideoStore)(nil)

type VideoStore struct {
	mock.Mock
}

func (m *VideoStore) Create(ctx context.Context, v *domain.Video) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *VideoStore) Get(ctx context.Context, id string) (*domain.Video, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*domain.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *VideoStore) UpdateStatus(ctx context.Context, id string, status domain.ProcessingStatus, errMsg string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

func (m *VideoStore) MarkCompleted(ctx context.Context, id string, result *domain.ProcessedVideo) error {
	args := m.Called(ctx, id, result)
	return args.Error(0)
}

func (m *VideoStore) ListByStatus(ctx context.Context, status domain.ProcessingStatus) ([]*domain.Video, error) {
	args := m.Called(ctx, status)
	if v := args.Get(0); v != nil {
		return v.([]*domain.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *VideoStore) ListStale(ctx context.Context, olderThan time.Time) ([]*domain.Video, error) {
	args := m.Called(ctx, olderThan)
	if v := args.Get(0); v != nil {
		return v.([]*domain.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *VideoStore) CountByStatus(ctx context.Context) (map[domain.ProcessingStatus]int, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(map[domain.ProcessingStatus]int), args.Error(1)
	}
	return nil, args.Error(1)
}
