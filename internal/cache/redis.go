package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements SharedStore on a Redis server. It is the
// cross-instance tier: entries written here are visible to every running
// instance of the service.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore from a redis URL
// (redis://[user:pass@]host:port/db).
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

var _ SharedStore = (*RedisStore)(nil)

// Get implements SharedStore.Get. A missing key is a miss, not an error.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// SetWithTTL implements SharedStore.SetWithTTL.
func (s *RedisStore) SetWithTTL(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, data, ttl).Err()
}

// Delete implements SharedStore.Delete.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Clear implements SharedStore.Clear. It scans for keys under the given
// prefix and deletes them in batches.
func (s *RedisStore) Clear(ctx context.Context, prefix string) error {
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()

	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return s.client.Del(ctx, batch...).Err()
	}
	return nil
}

// Ping implements SharedStore.Ping.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client's resources.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
