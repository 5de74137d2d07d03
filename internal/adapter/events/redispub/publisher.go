// Package redispub forwards video status events to Redis pub/sub so that
// processes outside this one can follow processing progress.
package redispub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/infrastructure/logger"
	"github.com/bnema/reel/internal/port"
)

const (
	ChannelPrefix  = "reel:videos:"
	publishTimeout = 2 * time.Second
	connectTimeout = 5 * time.Second
)

type client interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

type Publisher struct {
	client client
}

// New connects to the server at redisURL (redis:// or rediss://) and checks
// it answers before returning.
func New(ctx context.Context, redisURL string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info.Printf("redis event forwarding enabled (%s)", opts.Addr)
	return &Publisher{client: rdb}, nil
}

// Channel is the pub/sub channel carrying the events of one video.
func Channel(videoID string) string {
	return ChannelPrefix + videoID
}

// Publish sends event as JSON. Errors are logged; a slow or missing Redis
// never blocks processing for longer than publishTimeout.
func (p *Publisher) Publish(videoID string, event domain.StatusEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error.Printf("failed to encode event for video %s: %v", videoID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, Channel(videoID), payload).Err(); err != nil {
		logger.Warn.Printf("failed to publish event for video %s: %v", videoID, err)
	}
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

var _ port.EventPublisher = (*Publisher)(nil)
