package repository

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs rate limiting and idempotent response replay. Both
// concerns fail open: losing Redis degrades protection, not availability.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(url, password string, db int) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	if db != 0 {
		opts.DB = db
	}

	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// CheckRateLimit allows up to `requests` hits per key per window.
func (s *RedisStore) CheckRateLimit(ctx context.Context, key string, requests int, window time.Duration) (bool, error) {
	hasher := sha256.New()
	hasher.Write([]byte(key))
	hashedKey := fmt.Sprintf("ratelimit:%x", hasher.Sum(nil))

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, hashedKey)
	pipe.Expire(ctx, hashedKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		// Fail open on store errors.
		return true, err
	}

	return incr.Val() <= int64(requests), nil
}

// Get implements middleware.IdempotencyStore.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// Set implements middleware.IdempotencyStore.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
