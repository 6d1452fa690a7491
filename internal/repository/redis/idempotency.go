package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/siyana/storefront/pkg/kafka"
)

const processedPrefix = "storefront:processed:"

// IdempotencyStore records processed event IDs in Redis so every consumer
// replica shares one view.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ kafka.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a store whose entries expire after ttl.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

func (s *IdempotencyStore) Contains(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, processedPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists processed event: %w", err)
	}
	return n > 0, nil
}

func (s *IdempotencyStore) Add(ctx context.Context, eventID string) error {
	if err := s.client.Set(ctx, processedPrefix+eventID, 1, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set processed event: %w", err)
	}
	return nil
}
