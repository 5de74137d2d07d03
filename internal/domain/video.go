package domain

import (
	"time"
)

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

type SourceMetadata struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Codec    string  `json:"codec"`
	Bitrate  string  `json:"bitrate"`
}

type VideoFormat struct {
	Quality    string `json:"quality"`
	Resolution string `json:"resolution"`
	Bitrate    string `json:"bitrate"`
	Codec      string `json:"codec"`
	URL        string `json:"url"`
	Size       int64  `json:"size"`
}

type VideoThumbnail struct {
	URL       string  `json:"url"`
	Timestamp float64 `json:"timestamp"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Size      int64   `json:"size"`
}

// ProcessedVideo is the manifest of one successful pipeline run.
type ProcessedVideo struct {
	Duration       float64          `json:"duration"`
	OriginalSize   int64            `json:"original_size"`
	Formats        []VideoFormat    `json:"formats"`
	Thumbnails     []VideoThumbnail `json:"thumbnails"`
	Metadata       SourceMetadata   `json:"metadata"`
	ProcessingTime int64            `json:"processing_time_ms"`
}

// UploadResult is what the blob store hands back for a stored artifact.
type UploadResult struct {
	URL  string
	Size int64
	ID   string
}

// Delivered reports whether an upload produced a usable artifact.
func (u UploadResult) Delivered() bool {
	return u.URL != "" && u.Size > 0
}

// Video is the persisted record for one source video.
type Video struct {
	ID             string            `json:"id"`
	SourceURL      string            `json:"source_url"`
	Options        ProcessingOptions `json:"options"`
	Status         ProcessingStatus  `json:"processing_status"`
	Formats        []VideoFormat     `json:"processed_formats"`
	Thumbnails     []VideoThumbnail  `json:"thumbnails"`
	Metadata       *SourceMetadata   `json:"metadata,omitempty"`
	Duration       float64           `json:"duration"`
	OriginalSize   int64             `json:"original_size,omitempty"`
	ProcessingTime int64             `json:"processing_time_ms,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	Attempts       int               `json:"attempts"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func NewVideo(id, sourceURL string, opts ProcessingOptions) *Video {
	now := time.Now()
	return &Video{
		ID:        id,
		SourceURL: sourceURL,
		Options:   opts,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (v *Video) MarkProcessing() {
	v.Status = StatusProcessing
	v.Attempts++
	v.UpdatedAt = time.Now()
}

func (v *Video) MarkCompleted(result *ProcessedVideo) {
	meta := result.Metadata
	v.Status = StatusCompleted
	v.Formats = result.Formats
	v.Thumbnails = result.Thumbnails
	v.Metadata = &meta
	v.Duration = result.Duration
	v.OriginalSize = result.OriginalSize
	v.ProcessingTime = result.ProcessingTime
	v.ErrorMessage = ""
	v.UpdatedAt = time.Now()
}

func (v *Video) MarkFailed(err error) {
	v.Status = StatusFailed
	v.ErrorMessage = err.Error()
	v.UpdatedAt = time.Now()
}

// IsStale reports whether a processing row has not moved for longer than after.
func (v *Video) IsStale(after time.Duration, now time.Time) bool {
	return v.Status == StatusProcessing && now.Sub(v.UpdatedAt) > after
}
