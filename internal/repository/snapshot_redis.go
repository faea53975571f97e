package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSnapshotStore keeps snapshots under conversation:<session>. A zero ttl
// keeps them forever.
type RedisSnapshotStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisSnapshotStore(client *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{redis: client, ttl: ttl}
}

func snapshotKey(sessionID string) string {
	return "conversation:" + sessionID
}

func (r *RedisSnapshotStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	data, err := r.redis.Get(ctx, snapshotKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return data, nil
}

func (r *RedisSnapshotStore) Save(ctx context.Context, sessionID string, data []byte) error {
	if err := r.redis.Set(ctx, snapshotKey(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (r *RedisSnapshotStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.redis.Del(ctx, snapshotKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
