package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/promarket/pkg/database"
	apperrors "github.com/utafrali/promarket/pkg/errors"
)

// Slot implements slot.Slot on top of Redis string keys.
type Slot struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSlot creates a Redis-backed slot. A zero ttl keeps keys forever.
func NewSlot(client *redis.Client, ttl time.Duration) *Slot {
	return &Slot{
		client: client,
		ttl:    ttl,
	}
}

// Load reads the value under key.
func (s *Slot) Load(ctx context.Context, key string) (data []byte, err error) {
	ctx, end := database.TraceCommand(ctx, "GET", key)
	defer func() { end(err) }()

	data, err = s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("slot", key)
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Store writes the value under key, refreshing the TTL.
func (s *Slot) Store(ctx context.Context, key string, value []byte) (err error) {
	ctx, end := database.TraceCommand(ctx, "SET", key)
	defer func() { end(err) }()

	if err = s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes the key.
func (s *Slot) Delete(ctx context.Context, key string) (err error) {
	ctx, end := database.TraceCommand(ctx, "DEL", key)
	defer func() { end(err) }()

	if err = s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity to Redis.
func (s *Slot) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
