package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/iho/stockledger/internal/domain"
)

// DefaultStreamMaxLen caps the movement stream; trimming is approximate.
const DefaultStreamMaxLen = 100_000

// StreamPublisher appends movement events to a Redis stream.
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewStreamPublisher creates a StreamPublisher writing to stream.
func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
		maxLen: DefaultStreamMaxLen,
	}
}

// Publish adds one entry per event. The entry id is assigned by Redis.
func (p *StreamPublisher) Publish(ctx context.Context, event domain.MovementEvent) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: event.Values(),
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s seq %d: %w", p.stream, event.Seq, err)
	}

	return nil
}
