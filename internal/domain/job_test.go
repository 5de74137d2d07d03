package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewJob(t *testing.T) {
	opts := ProcessingOptions{ThumbnailCount: 3}

	job := NewJob("vid-1", "https://cdn.example.com/in.mp4", opts, 0)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "vid-1", job.VideoID)
	assert.Equal(t, 0, job.RetryCount)
	assert.Equal(t, DefaultMaxRetries, job.MaxRetries)
	assert.NotEqual(t, job.ID, NewJob("vid-1", "src", opts, 0).ID, "ids are unique")
}

func TestJob_Exhausted(t *testing.T) {
	job := NewJob("vid-1", "src", ProcessingOptions{}, 2)

	assert.False(t, job.Exhausted())
	job.RetryCount = 1
	assert.False(t, job.Exhausted())
	job.RetryCount = 2
	assert.True(t, job.Exhausted())
}

func TestProcessingOptions_Defaults(t *testing.T) {
	var opts ProcessingOptions

	assert.True(t, opts.WantsThumbnails())
	assert.Equal(t, []string{"360p", "720p"}, opts.RequestedRenditions())
	assert.Equal(t, DefaultThumbnailCount, opts.Thumbnails())

	off := false
	opts.GenerateThumbnails = &off
	assert.False(t, opts.WantsThumbnails())

	on := true
	opts.GenerateThumbnails = &on
	assert.True(t, opts.WantsThumbnails())
}

func TestWatermark_Kind(t *testing.T) {
	var none *Watermark
	assert.False(t, none.IsText())
	assert.False(t, none.IsImage())

	text := &Watermark{Text: "reel", ImageURL: "https://x/logo.png"}
	assert.True(t, text.IsText())
	assert.False(t, text.IsImage(), "text wins when both are set")

	image := &Watermark{ImageURL: "https://x/logo.png"}
	assert.True(t, image.IsImage())
}
