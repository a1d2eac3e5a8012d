package redis

import (
	"context"
	"errors"
	"time"
)

var ErrKeyExists = errors.New("idempotency key already exists")

// CheckAndSetIdempotency claims the key or reports what happened to it.
// Returns the cached response if the operation already completed, ErrKeyExists
// if it is still in flight, or (nil, nil) if this caller now owns the key.
func (c *Client) CheckAndSetIdempotency(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	prefixedKey := c.prefixKey("idempotency:" + key)

	set, err := c.rdb.SetNX(ctx, prefixedKey, "pending", ttl).Result()
	if err != nil {
		return nil, err
	}

	if set {
		return nil, nil
	}

	val, err := c.rdb.Get(ctx, prefixedKey).Result()
	if err != nil {
		return nil, err
	}

	if val == "pending" {
		return nil, ErrKeyExists
	}

	return []byte(val), nil
}

// MarkIdempotencyComplete caches the operation's outcome so replays of the
// same key short-circuit with the original response.
func (c *Client) MarkIdempotencyComplete(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	prefixedKey := c.prefixKey("idempotency:" + key)

	return c.rdb.Set(ctx, prefixedKey, response, ttl).Err()
}

// MarkIdempotencyFailed releases the key so the operation can be retried.
func (c *Client) MarkIdempotencyFailed(ctx context.Context, key string) error {
	prefixedKey := c.prefixKey("idempotency:" + key)

	return c.rdb.Del(ctx, prefixedKey).Err()
}
