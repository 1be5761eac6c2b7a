package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockoutKeyPrefix = "collabhub:lockout:"

// RedisLockoutStore keeps lockout state in Redis so every server instance
// sees the same counters.
type RedisLockoutStore struct {
	client          redis.UniversalClient
	threshold       int
	lockoutDuration time.Duration
}

// NewRedisLockoutStore creates a Redis-backed lockout store.
func NewRedisLockoutStore(client redis.UniversalClient, threshold int, duration time.Duration) *RedisLockoutStore {
	return &RedisLockoutStore{
		client:          client,
		threshold:       threshold,
		lockoutDuration: duration,
	}
}

func failKey(key string) string { return lockoutKeyPrefix + "fail:" + key }
func lockKey(key string) string { return lockoutKeyPrefix + "lock:" + key }

// RecordFailure increments the failure counter and sets the lock key once
// the threshold is reached.
func (s *RedisLockoutStore) RecordFailure(ctx context.Context, key string) (bool, error) {
	locked, err := s.IsLocked(ctx, key)
	if err != nil {
		return false, err
	}
	if locked {
		return true, nil
	}

	failures, err := s.client.Incr(ctx, failKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("incr failures: %w", err)
	}
	if failures == 1 {
		if err := s.client.Expire(ctx, failKey(key), s.lockoutDuration).Err(); err != nil {
			return false, fmt.Errorf("expire failures: %w", err)
		}
	}

	if failures < int64(s.threshold) {
		return false, nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, lockKey(key), failures, s.lockoutDuration)
		pipe.Del(ctx, failKey(key))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("set lock: %w", err)
	}
	return true, nil
}

// IsLocked reports whether the lock key exists.
func (s *RedisLockoutStore) IsLocked(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, lockKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("check lock: %w", err)
	}
	return n > 0, nil
}

// RemainingLockoutTime returns the TTL of the lock key.
func (s *RedisLockoutStore) RemainingLockoutTime(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, lockKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lock ttl: %w", err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// ClearFailures removes both the counter and the lock.
func (s *RedisLockoutStore) ClearFailures(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, failKey(key), lockKey(key)).Err(); err != nil {
		return fmt.Errorf("clear lockout: %w", err)
	}
	return nil
}
