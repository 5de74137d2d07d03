package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/infrastructure/logger"
	"github.com/bnema/reel/internal/metrics"
	"github.com/bnema/reel/internal/port"
	"github.com/bnema/reel/internal/validation"
)

const (
	artifactRendition = "rendition"
	artifactThumbnail = "thumbnail"
)

// Processor runs one source through the pipeline. The queue and the batch
// runner both drive a Processor.
type Processor interface {
	ProcessVideo(ctx context.Context, sourceURL string, opts domain.ProcessingOptions) (*domain.ProcessedVideo, error)
}

type Pipeline struct {
	fetcher      port.SourceFetcher
	engine       port.MediaEngine
	blobs        port.BlobStore
	transcoder   *Transcoder
	thumbnails   *ThumbnailGenerator
	scratchRoot  string
	stageTimeout time.Duration
	metrics      *metrics.Metrics
}

func NewPipeline(
	fetcher port.SourceFetcher,
	engine port.MediaEngine,
	blobs port.BlobStore,
	scratchRoot string,
	stageTimeout time.Duration,
	m *metrics.Metrics,
) *Pipeline {
	return &Pipeline{
		fetcher:      fetcher,
		engine:       engine,
		blobs:        blobs,
		transcoder:   NewTranscoder(engine, stageTimeout, m),
		thumbnails:   NewThumbnailGenerator(engine, stageTimeout, m),
		scratchRoot:  scratchRoot,
		stageTimeout: stageTimeout,
		metrics:      m,
	}
}

// ProcessVideo downloads, probes, transcodes and uploads one source. Download,
// probe and duration problems abort the run; a single rendition or thumbnail
// failing does not. The scratch directory is removed on every return path.
func (p *Pipeline) ProcessVideo(ctx context.Context, sourceURL string, opts domain.ProcessingOptions) (*domain.ProcessedVideo, error) {
	started := time.Now()

	scratch, err := os.MkdirTemp(p.scratchRoot, "reel-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Error.Printf("failed to remove scratch directory %s: %v", scratch, err)
		}
	}()

	sourcePath := filepath.Join(scratch, "source")
	if err := p.stage(ctx, "download", func(ctx context.Context) error {
		_, err := p.fetcher.Fetch(ctx, sourceURL, sourcePath)
		return err
	}); err != nil {
		return nil, fmt.Errorf("download source: %w", err)
	}

	if err := validation.CheckSourceFile(sourcePath); err != nil {
		return nil, err
	}

	var probe *domain.ProbeResult
	if err := p.stage(ctx, "probe", func(ctx context.Context) error {
		var err error
		probe, err = p.engine.Probe(ctx, sourcePath)
		return err
	}); err != nil {
		return nil, fmt.Errorf("probe source: %w", err)
	}

	meta, err := domain.MetadataFromProbe(probe)
	if err != nil {
		return nil, err
	}

	if opts.MaxDuration > 0 && meta.Duration > opts.MaxDuration {
		return nil, fmt.Errorf("%w: %.1fs > %.1fs", domain.ErrDurationExceeded, meta.Duration, opts.MaxDuration)
	}

	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}

	plan := domain.PlanRenditions(meta, opts.RequestedRenditions())
	logger.Debug.Printf("planned %d renditions for %s (%dx%d)", len(plan), logger.RedactURL(sourceURL), meta.Width, meta.Height)

	encoded := p.transcoder.TranscodeAll(ctx, TranscodeInput{
		SourcePath:         sourcePath,
		ScratchDir:         scratch,
		Renditions:         plan,
		Watermark:          opts.Watermark,
		WatermarkImagePath: p.fetchWatermark(ctx, opts.Watermark, scratch),
	})

	formats := make([]domain.VideoFormat, 0, len(encoded))
	for _, r := range encoded {
		res, ok := p.upload(ctx, r.Path, validation.JoinKey(opts.OutputPrefix, r.Spec.Quality+".mp4"), artifactRendition)
		if !ok {
			continue
		}
		formats = append(formats, domain.VideoFormat{
			Quality:    r.Spec.Quality,
			Resolution: r.Spec.Resolution,
			Bitrate:    r.Spec.Bitrate,
			Codec:      r.Spec.Codec,
			URL:        res.URL,
			Size:       res.Size,
		})
	}

	thumbnails := []domain.VideoThumbnail{}
	if opts.WantsThumbnails() {
		frames := p.thumbnails.Generate(ctx, sourcePath, scratch, meta.Duration, opts.Thumbnails())
		for _, f := range frames {
			res, ok := p.upload(ctx, f.Path, validation.JoinKey(opts.OutputPrefix, fmt.Sprintf("thumb_%d.jpg", f.Index)), artifactThumbnail)
			if !ok {
				continue
			}
			thumbnails = append(thumbnails, domain.VideoThumbnail{
				URL:       res.URL,
				Timestamp: f.Timestamp,
				Width:     domain.ThumbnailWidth,
				Height:    domain.ThumbnailHeight,
				Size:      res.Size,
			})
		}
	}

	// A canceled run must not be reported as a partial success.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	took := time.Since(started)
	p.metrics.ObserveStage("pipeline", took)

	return &domain.ProcessedVideo{
		Duration:       meta.Duration,
		OriginalSize:   info.Size(),
		Formats:        formats,
		Thumbnails:     thumbnails,
		Metadata:       meta,
		ProcessingTime: took.Milliseconds(),
	}, nil
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	started := time.Now()
	err := withStageTimeout(ctx, p.stageTimeout, fn)
	p.metrics.ObserveStage(name, time.Since(started))
	return err
}

// fetchWatermark copies an image watermark into scratch and returns its path,
// or "" when there is nothing to overlay.
func (p *Pipeline) fetchWatermark(ctx context.Context, wm *domain.Watermark, scratch string) string {
	if !wm.IsImage() {
		return ""
	}
	dest := filepath.Join(scratch, "watermark")
	err := p.stage(ctx, "watermark", func(ctx context.Context) error {
		_, err := p.fetcher.Fetch(ctx, wm.ImageURL, dest)
		return err
	})
	if err != nil {
		logger.Warn.Printf("watermark %s dropped: %v", logger.RedactURL(wm.ImageURL), err)
		return ""
	}
	return dest
}

// upload hands one artifact to the blob store. Failures and empty results are
// logged and reported as not delivered.
func (p *Pipeline) upload(ctx context.Context, localPath, key, kind string) (domain.UploadResult, bool) {
	started := time.Now()
	res, err := p.blobs.Upload(ctx, localPath, key)
	p.metrics.ObserveStage("upload", time.Since(started))
	if err != nil {
		logger.Warn.Printf("%s %s not uploaded: %v", kind, key, err)
		p.metrics.ArtifactFailed(kind)
		return domain.UploadResult{}, false
	}
	if !res.Delivered() {
		logger.Warn.Printf("%s %s not uploaded: empty result", kind, key)
		p.metrics.ArtifactFailed(kind)
		return domain.UploadResult{}, false
	}
	p.metrics.ArtifactDelivered(kind)
	return res, true
}

var _ Processor = (*Pipeline)(nil)
