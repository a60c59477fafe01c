package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares rendered pages between instances.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore stores pages under prefix with the given expiry.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	page, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get page: %w", err)
	}
	return page, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, page []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, page, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set page: %w", err)
	}
	return nil
}

// Invalidate scans the prefix and deletes every affected page.
func (s *RedisStore) Invalidate(ctx context.Context, path string) (int, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if Affected(path, strings.TrimPrefix(k, s.prefix)) {
			keys = append(keys, k)
		}
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan pages: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis delete pages: %w", err)
	}
	return int(n), nil
}

// Ping reports whether Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
