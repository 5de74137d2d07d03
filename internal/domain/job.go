package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaxRetries     = 3
	DefaultThumbnailCount = 5
)

// DefaultRenditions is used when a job does not request any quality.
var DefaultRenditions = []string{"360p", "720p"}

type WatermarkPosition string

const (
	PositionTopLeft     WatermarkPosition = "top-left"
	PositionTopRight    WatermarkPosition = "top-right"
	PositionBottomLeft  WatermarkPosition = "bottom-left"
	PositionBottomRight WatermarkPosition = "bottom-right"
	PositionCenter      WatermarkPosition = "center"
)

// Watermark is either a text or an image overlay. Text wins when both are set.
type Watermark struct {
	Text     string            `json:"text,omitempty"`
	ImageURL string            `json:"image_url,omitempty"`
	Position WatermarkPosition `json:"position,omitempty"`
}

func (w *Watermark) IsText() bool {
	return w != nil && w.Text != ""
}

func (w *Watermark) IsImage() bool {
	return w != nil && w.Text == "" && w.ImageURL != ""
}

type ProcessingOptions struct {
	Renditions         []string   `json:"renditions,omitempty"`
	ThumbnailCount     int        `json:"thumbnail_count,omitempty"`
	MaxDuration        float64    `json:"max_duration,omitempty"`
	GenerateThumbnails *bool      `json:"generate_thumbnails,omitempty"`
	Watermark          *Watermark `json:"watermark,omitempty"`
	OutputPrefix       string     `json:"output_prefix,omitempty"`
}

// WantsThumbnails reports whether thumbnails should be produced. Only an
// explicit false disables them.
func (o ProcessingOptions) WantsThumbnails() bool {
	return o.GenerateThumbnails == nil || *o.GenerateThumbnails
}

func (o ProcessingOptions) RequestedRenditions() []string {
	if len(o.Renditions) == 0 {
		return DefaultRenditions
	}
	return o.Renditions
}

func (o ProcessingOptions) Thumbnails() int {
	if o.ThumbnailCount <= 0 {
		return DefaultThumbnailCount
	}
	return o.ThumbnailCount
}

// Job is the in-memory unit of queued work. Only the status of its video is
// persisted; the job itself is lost on restart.
type Job struct {
	ID         string
	VideoID    string
	SourceURL  string
	Options    ProcessingOptions
	RetryCount int
	MaxRetries int
	CreatedAt  time.Time
}

func NewJob(videoID, sourceURL string, opts ProcessingOptions, maxRetries int) *Job {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Job{
		ID:         uuid.NewString(),
		VideoID:    videoID,
		SourceURL:  sourceURL,
		Options:    opts,
		MaxRetries: maxRetries,
		CreatedAt:  time.Now(),
	}
}

// Exhausted reports whether the job has used every allowed attempt.
func (j *Job) Exhausted() bool {
	return j.RetryCount >= j.MaxRetries
}
