package service

import (
	"context"
	"path/filepath"
	"time"

	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/infrastructure/logger"
	"github.com/bnema/reel/internal/metrics"
	"github.com/bnema/reel/internal/port"
)

// EncodedRendition is a rendition that was written to scratch.
type EncodedRendition struct {
	Spec domain.RenditionSpec
	Path string
}

type TranscodeInput struct {
	SourcePath string
	ScratchDir string
	Renditions []domain.RenditionSpec
	Watermark  *domain.Watermark
	// WatermarkImagePath is set once an image watermark has been fetched.
	WatermarkImagePath string
}

type Transcoder struct {
	engine       port.MediaEngine
	stageTimeout time.Duration
	metrics      *metrics.Metrics
}

func NewTranscoder(engine port.MediaEngine, stageTimeout time.Duration, m *metrics.Metrics) *Transcoder {
	return &Transcoder{
		engine:       engine,
		stageTimeout: stageTimeout,
		metrics:      m,
	}
}

// TranscodeAll encodes every planned rendition one after the other. A
// rendition that fails is logged and left out of the result.
func (t *Transcoder) TranscodeAll(ctx context.Context, in TranscodeInput) []EncodedRendition {
	encoded := make([]EncodedRendition, 0, len(in.Renditions))

	for _, r := range in.Renditions {
		if ctx.Err() != nil {
			break
		}

		outputPath := filepath.Join(in.ScratchDir, r.Quality+".mp4")
		req := domain.TranscodeRequest{
			InputPath:          in.SourcePath,
			OutputPath:         outputPath,
			Rendition:          r,
			Watermark:          in.Watermark,
			WatermarkImagePath: in.WatermarkImagePath,
		}
		if in.Watermark.IsImage() && in.WatermarkImagePath == "" {
			req.Watermark = nil
		}

		started := time.Now()
		err := withStageTimeout(ctx, t.stageTimeout, func(ctx context.Context) error {
			return t.engine.Transcode(ctx, req)
		})
		t.metrics.ObserveStage("transcode", time.Since(started))
		if err != nil {
			logger.Warn.Printf("rendition %s skipped: %v", r.Quality, err)
			t.metrics.ArtifactFailed(artifactRendition)
			continue
		}

		encoded = append(encoded, EncodedRendition{Spec: r, Path: outputPath})
	}

	return encoded
}

// withStageTimeout bounds one engine call. A zero timeout leaves ctx as is.
func withStageTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
