package port

import "github.com/bnema/reel/internal/domain"

// EventPublisher receives every video status transition.
type EventPublisher interface {
	Publish(videoID string, event domain.StatusEvent)
}
