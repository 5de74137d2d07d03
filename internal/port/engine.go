package port

import (
	"context"

	"github.com/bnema/reel/internal/domain"
)

type MediaEngine interface {
	Probe(ctx context.Context, path string) (*domain.ProbeResult, error)
	Transcode(ctx context.Context, req domain.TranscodeRequest) error
	ExtractFrame(ctx context.Context, req domain.FrameRequest) error
}
