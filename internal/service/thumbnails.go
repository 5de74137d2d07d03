package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/infrastructure/logger"
	"github.com/bnema/reel/internal/metrics"
	"github.com/bnema/reel/internal/port"
)

// ExtractedFrame is a thumbnail that was written to scratch.
type ExtractedFrame struct {
	Index     int
	Timestamp float64
	Path      string
}

type ThumbnailGenerator struct {
	engine       port.MediaEngine
	stageTimeout time.Duration
	metrics      *metrics.Metrics
}

func NewThumbnailGenerator(engine port.MediaEngine, stageTimeout time.Duration, m *metrics.Metrics) *ThumbnailGenerator {
	return &ThumbnailGenerator{
		engine:       engine,
		stageTimeout: stageTimeout,
		metrics:      m,
	}
}

// Generate extracts count frames spread over duration. Frames that cannot be
// extracted are skipped.
func (g *ThumbnailGenerator) Generate(ctx context.Context, sourcePath, scratchDir string, duration float64, count int) []ExtractedFrame {
	timestamps := domain.ThumbnailTimestamps(duration, count)
	frames := make([]ExtractedFrame, 0, len(timestamps))

	for i, ts := range timestamps {
		if ctx.Err() != nil {
			break
		}

		outputPath := filepath.Join(scratchDir, fmt.Sprintf("thumb_%d.jpg", i))
		req := domain.FrameRequest{
			InputPath:  sourcePath,
			OutputPath: outputPath,
			Timestamp:  ts,
			Width:      domain.ThumbnailWidth,
			Height:     domain.ThumbnailHeight,
		}

		started := time.Now()
		err := withStageTimeout(ctx, g.stageTimeout, func(ctx context.Context) error {
			return g.engine.ExtractFrame(ctx, req)
		})
		g.metrics.ObserveStage("thumbnail", time.Since(started))
		if err != nil {
			logger.Warn.Printf("thumbnail at %.2fs skipped: %v", ts, err)
			g.metrics.ArtifactFailed(artifactThumbnail)
			continue
		}

		frames = append(frames, ExtractedFrame{Index: i, Timestamp: ts, Path: outputPath})
	}

	return frames
}
