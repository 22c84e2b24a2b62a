package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// CursorStore keeps publisher cursors in Redis.
type CursorStore struct {
	client *redis.Client
	prefix string
}

// NewCursorStore creates a new CursorStore.
func NewCursorStore(client *redis.Client) *CursorStore {
	return &CursorStore{
		client: client,
		prefix: "stockledger:cursor:",
	}
}

// LoadCursor returns the last published sequence id for name, 0 if none.
func (s *CursorStore) LoadCursor(ctx context.Context, name string) (int64, error) {
	seq, err := s.client.Get(ctx, s.prefix+name).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load cursor %s: %w", name, err)
	}

	return seq, nil
}

// SaveCursor stores the last published sequence id for name.
func (s *CursorStore) SaveCursor(ctx context.Context, name string, seq int64) error {
	if err := s.client.Set(ctx, s.prefix+name, seq, 0).Err(); err != nil {
		return fmt.Errorf("save cursor %s: %w", name, err)
	}

	return nil
}
