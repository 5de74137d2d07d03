package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/infrastructure/logger"
	"github.com/bnema/reel/internal/port"
)

var ErrInvalidOptions = errors.New("invalid processing options")

const maxThumbnailCount = 50

// VideoService is the entry point the HTTP layer and the CLI use to submit and
// inspect videos.
type VideoService struct {
	store port.VideoStore
	queue *Queue
}

func NewVideoService(store port.VideoStore, queue *Queue) *VideoService {
	return &VideoService{
		store: store,
		queue: queue,
	}
}

// QueueVideoProcessing records a pending video and admits a job for it. It
// returns once the job is queued; processing errors are only visible through
// the stored status.
func (s *VideoService) QueueVideoProcessing(ctx context.Context, videoID, sourceURL string, opts domain.ProcessingOptions) (*domain.Job, error) {
	if videoID == "" {
		return nil, fmt.Errorf("%w: video id is required", ErrInvalidOptions)
	}
	if err := domain.ValidateSourceURL(sourceURL); err != nil {
		return nil, err
	}
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	video := domain.NewVideo(videoID, sourceURL, opts)
	if err := s.store.Create(ctx, video); err != nil {
		return nil, fmt.Errorf("save video: %w", err)
	}

	job, err := s.queue.AddJob(videoID, sourceURL, opts)
	if err != nil {
		return nil, err
	}
	logger.Info.Printf("video queued: id=%s source=%s", videoID, logger.RedactURL(sourceURL))
	return job, nil
}

func (s *VideoService) QueueStatus() QueueStatus {
	return s.queue.Status()
}

func (s *VideoService) Get(ctx context.Context, id string) (*domain.Video, error) {
	return s.store.Get(ctx, id)
}

func (s *VideoService) ListFailed(ctx context.Context) ([]*domain.Video, error) {
	return s.store.ListByStatus(ctx, domain.StatusFailed)
}

func (s *VideoService) Counts(ctx context.Context) (map[domain.ProcessingStatus]int, error) {
	return s.store.CountByStatus(ctx)
}

// Retry re-admits a permanently failed video with a fresh retry budget.
func (s *VideoService) Retry(ctx context.Context, id string) (*domain.Job, error) {
	video, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if video.Status != domain.StatusFailed {
		return nil, domain.ErrNotRetryable
	}

	if err := s.store.UpdateStatus(ctx, id, domain.StatusPending, ""); err != nil {
		return nil, fmt.Errorf("reset video status: %w", err)
	}

	job, err := s.queue.AddJob(video.ID, video.SourceURL, video.Options)
	if err != nil {
		return nil, err
	}
	logger.Info.Printf("video %s re-queued by admin", id)
	return job, nil
}

// Reconcile re-admits videos left behind by a previous process: every pending
// row, and processing rows that have not moved for staleAfter.
func (s *VideoService) Reconcile(ctx context.Context, staleAfter time.Duration) (int, error) {
	pending, err := s.store.ListByStatus(ctx, domain.StatusPending)
	if err != nil {
		return 0, fmt.Errorf("list pending videos: %w", err)
	}
	stale, err := s.store.ListStale(ctx, time.Now().Add(-staleAfter))
	if err != nil {
		return 0, fmt.Errorf("list stale videos: %w", err)
	}

	requeued := 0
	for _, v := range stale {
		if err := s.store.UpdateStatus(ctx, v.ID, domain.StatusPending, "requeued after restart"); err != nil {
			logger.Error.Printf("failed to reset stale video %s: %v", v.ID, err)
			continue
		}
		pending = append(pending, v)
	}

	for _, v := range pending {
		if _, err := s.queue.AddJob(v.ID, v.SourceURL, v.Options); err != nil {
			return requeued, err
		}
		requeued++
	}

	if requeued > 0 {
		logger.Info.Printf("reconciliation re-queued %d videos (%d stale)", requeued, len(stale))
	}
	return requeued, nil
}

func validateOptions(opts domain.ProcessingOptions) error {
	// Submitted videos always write under videos/<id>; only the batch command
	// picks its own prefix.
	if opts.OutputPrefix != "" {
		return fmt.Errorf("%w: output prefix cannot be set", ErrInvalidOptions)
	}
	for _, q := range opts.Renditions {
		if !domain.IsKnownQuality(q) {
			return fmt.Errorf("%w: unknown rendition %q", ErrInvalidOptions, q)
		}
	}
	if opts.ThumbnailCount < 0 || opts.ThumbnailCount > maxThumbnailCount {
		return fmt.Errorf("%w: thumbnail count must be between 0 and %d", ErrInvalidOptions, maxThumbnailCount)
	}
	if opts.MaxDuration < 0 {
		return fmt.Errorf("%w: max duration must not be negative", ErrInvalidOptions)
	}
	if wm := opts.Watermark; wm != nil {
		switch wm.Position {
		case "", domain.PositionTopLeft, domain.PositionTopRight, domain.PositionBottomLeft,
			domain.PositionBottomRight, domain.PositionCenter:
		default:
			return fmt.Errorf("%w: unknown watermark position %q", ErrInvalidOptions, wm.Position)
		}
		if wm.IsImage() {
			if err := domain.ValidateSourceURL(wm.ImageURL); err != nil {
				return fmt.Errorf("%w: watermark image: %v", ErrInvalidOptions, err)
			}
		}
	}
	return nil
}
