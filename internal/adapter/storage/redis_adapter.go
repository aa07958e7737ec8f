package storage

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/food-delivery/internal/port"
)

const processedEventKeyPrefix = "payments:event:"

// RedisAdapter keeps the processed-payment-event set in Redis so webhook
// deduplication survives restarts even when the in-memory store is used.
// Keys have no TTL: the dedup set is append-only.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

var _ port.EventDedup = (*RedisAdapter)(nil)

func (r *RedisAdapter) HasProcessedEvent(ctx context.Context, eventID string) (bool, error) {
	n, err := r.client.Exists(ctx, processedEventKeyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisAdapter) MarkEventProcessed(ctx context.Context, eventID string) error {
	return r.client.SetNX(ctx, processedEventKeyPrefix+eventID, 1, 0).Err()
}
