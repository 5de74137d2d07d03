package domain

import "time"

const EventTypeStatus = "status"

// StatusEvent is published on every processing status transition of a video.
type StatusEvent struct {
	Type       string           `json:"type"`
	VideoID    string           `json:"video_id"`
	Status     ProcessingStatus `json:"status"`
	Message    string           `json:"message,omitempty"`
	RetryCount int              `json:"retry_count"`
	At         time.Time        `json:"at"`
}

func NewStatusEvent(videoID string, status ProcessingStatus, message string, retryCount int) StatusEvent {
	return StatusEvent{
		Type:       EventTypeStatus,
		VideoID:    videoID,
		Status:     status,
		Message:    message,
		RetryCount: retryCount,
		At:         time.Now().UTC(),
	}
}
