package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "exoform:snapshot:"

// RedisStore keeps snapshots as plain string values, one key per room.
// SET replaces a value atomically.
type RedisStore struct {
	client *redis.Client
}

// OpenRedis connects to the Redis server named by a redis:// URL.
func OpenRedis(uri string) (*RedisStore, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts)), nil
}

// NewRedisStore wraps an existing client. The store owns the client from
// then on and closes it in Close.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) makeKey(room string) string {
	return redisKeyPrefix + room
}

// Load fetches a room's snapshot.
func (s *RedisStore) Load(ctx context.Context, room string) ([]byte, error) {
	key := s.makeKey(room)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to GET %s: %w", key, err)
	}
	return data, nil
}

// Save stores a room's snapshot without expiry.
func (s *RedisStore) Save(ctx context.Context, room string, data []byte) error {
	key := s.makeKey(room)
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to SET %s: %w", key, err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
