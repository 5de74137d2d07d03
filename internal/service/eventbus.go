package service

import (
	"sync"

	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/port"
)

// EventBus fans status events out to in-process subscribers, keyed by video.
type EventBus struct {
	subscribers map[string][]chan domain.StatusEvent
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan domain.StatusEvent),
	}
}

func (eb *EventBus) Subscribe(videoID string) chan domain.StatusEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan domain.StatusEvent, 16)
	eb.subscribers[videoID] = append(eb.subscribers[videoID], ch)
	return ch
}

func (eb *EventBus) Unsubscribe(videoID string, ch chan domain.StatusEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[videoID]
	for i, sub := range subs {
		if sub == ch {
			eb.subscribers[videoID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}

	if len(eb.subscribers[videoID]) == 0 {
		delete(eb.subscribers, videoID)
	}
}

func (eb *EventBus) Publish(videoID string, event domain.StatusEvent) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers[videoID] {
		select {
		case ch <- event:
		default:
			// Drop event if subscriber is slow
		}
	}
}

// Publishers forwards every event to each of its members in order.
type Publishers []port.EventPublisher

func (ps Publishers) Publish(videoID string, event domain.StatusEvent) {
	for _, p := range ps {
		if p != nil {
			p.Publish(videoID, event)
		}
	}
}

var (
	_ port.EventPublisher = (*EventBus)(nil)
	_ port.EventPublisher = Publishers(nil)
)
