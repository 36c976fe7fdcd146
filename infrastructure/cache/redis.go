package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore backs Store with a shared Redis, so counters and flags are
// visible to every instance in the cluster.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "redis ping")
	}
	return &RedisStore{client: client}, nil
}

// Client exposes the underlying connection for the pub/sub channel the
// message broker rides on.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "incr %s", key)
	}
	return n, nil
}

func (s *RedisStore) GetInt(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "get %s", key)
	}
	return n, nil
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	return errors.Wrapf(s.client.Del(ctx, key).Err(), "del %s", key)
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, errors.Wrapf(err, "exists %s", key)
	}
	return n > 0, nil
}

func (s *RedisStore) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.Wrapf(s.client.Set(ctx, key, value, ttl).Err(), "set %s", key)
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return errors.Wrapf(s.client.Expire(ctx, key, ttl).Err(), "expire %s", key)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
