package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/websync-digital/sunlit-blue-spark/internal/prefs"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
)

const keyPrefix = "prefs:"

// Store implements prefs.Store with one Redis hash per visitor profile.
// Every write slides the profile's expiry forward by ttl.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Redis-backed preference store.
func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

var _ prefs.Store = (*Store)(nil)

// Get reads one field of the profile hash.
func (s *Store) Get(ctx context.Context, profile, key string) (string, error) {
	v, err := s.client.HGet(ctx, keyPrefix+profile, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.NotFound("preference", key)
		}
		return "", fmt.Errorf("redis hget %s: %w", key, err)
	}
	return v, nil
}

// Set writes one field and refreshes the expiry.
func (s *Store) Set(ctx context.Context, profile, key, value string) error {
	hash := keyPrefix + profile

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, hash, key, value)
		if s.ttl > 0 {
			pipe.Expire(ctx, hash, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	return nil
}

// Clear deletes one field.
func (s *Store) Clear(ctx context.Context, profile, key string) error {
	if err := s.client.HDel(ctx, keyPrefix+profile, key).Err(); err != nil {
		return fmt.Errorf("redis hdel %s: %w", key, err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
