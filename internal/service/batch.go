package service

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/infrastructure/logger"
	"github.com/bnema/reel/internal/validation"
)

const DefaultBatchChunkSize = 3

// BatchRunner drives a Processor directly over a list of sources, without the
// queue's persistence or retries.
type BatchRunner struct {
	processor Processor
	chunkSize int
}

func NewBatchRunner(processor Processor, chunkSize int) *BatchRunner {
	if chunkSize <= 0 {
		chunkSize = DefaultBatchChunkSize
	}
	return &BatchRunner{
		processor: processor,
		chunkSize: chunkSize,
	}
}

// Process runs the sources chunk by chunk. Items of a chunk run concurrently
// and each one settles on its own: a failure is logged and left out of the
// result, in input order.
func (b *BatchRunner) Process(ctx context.Context, sourceURLs []string, opts domain.ProcessingOptions) []*domain.ProcessedVideo {
	results := make([]*domain.ProcessedVideo, len(sourceURLs))

	for start := 0; start < len(sourceURLs); start += b.chunkSize {
		if ctx.Err() != nil {
			logger.Warn.Printf("batch stopped before item %d: %v", start, ctx.Err())
			break
		}
		end := min(start+b.chunkSize, len(sourceURLs))

		// Not errgroup.WithContext: one failure must not cancel its siblings.
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				itemOpts := opts
				itemOpts.OutputPrefix = validation.JoinKey(batchPrefix(opts.OutputPrefix), uuid.NewString())

				res, err := b.processor.ProcessVideo(ctx, sourceURLs[i], itemOpts)
				if err != nil {
					logger.Error.Printf("batch item %d (%s) failed: %v", i, logger.RedactURL(sourceURLs[i]), err)
					return nil
				}
				results[i] = res
				return nil
			})
		}
		_ = g.Wait()
	}

	processed := make([]*domain.ProcessedVideo, 0, len(results))
	for _, r := range results {
		if r != nil {
			processed = append(processed, r)
		}
	}
	logger.Info.Printf("batch finished: %d/%d processed", len(processed), len(sourceURLs))
	return processed
}

func batchPrefix(prefix string) string {
	if prefix == "" {
		return "batch"
	}
	return prefix
}
