package port

import (
	"context"
	"time"

	"github.com/bnema/reel/internal/domain"
)

type VideoStore interface {
	Create(ctx context.Context, v *domain.Video) error
	Get(ctx context.Context, id string) (*domain.Video, error)
	// UpdateStatus moves a video to status. Moving to processing also counts
	// one more attempt.
	UpdateStatus(ctx context.Context, id string, status domain.ProcessingStatus, errMsg string) error
	MarkCompleted(ctx context.Context, id string, result *domain.ProcessedVideo) error
	ListByStatus(ctx context.Context, status domain.ProcessingStatus) ([]*domain.Video, error)
	// ListStale returns processing videos last updated before olderThan.
	ListStale(ctx context.Context, olderThan time.Time) ([]*domain.Video, error)
	CountByStatus(ctx context.Context) (map[domain.ProcessingStatus]int, error)
}
