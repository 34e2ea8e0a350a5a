package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/story-state/pkg/state"
)

// RedisStorage keeps game snapshots in Redis as JSON strings.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Ensure RedisStorage implements Storage interface
var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage connects to redisURL (redis://host:port/db). A zero ttl
// keeps snapshots until they are deleted.
func NewRedisStorage(redisURL string, ttl time.Duration, logger *slog.Logger) (*RedisStorage, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return &RedisStorage{
		client: redis.NewClient(opt),
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Client returns the underlying Redis client for pub/sub.
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := range maxRetries {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

func (r *RedisStorage) SaveSnapshot(ctx context.Context, snap *state.Snapshot) error {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now()
	}

	data, err := json.Marshal(snap)
	if err != nil {
		r.logger.Error("Failed to marshal gamestate", "game_id", snap.ID, "error", err)
		return fmt.Errorf("failed to marshal gamestate: %w", err)
	}

	if err := r.client.Set(ctx, snapshotKey(snap.ID), data, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save gamestate", "game_id", snap.ID, "error", err)
		return fmt.Errorf("failed to save gamestate: %w", err)
	}

	r.logger.Debug("Saved gamestate", "game_id", snap.ID, "turn", snap.Turn, "bytes", len(data))
	return nil
}

func (r *RedisStorage) LoadSnapshot(ctx context.Context, id uuid.UUID) (*state.Snapshot, error) {
	data, err := r.client.Get(ctx, snapshotKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("Gamestate not found", "game_id", id)
			return nil, nil
		}
		r.logger.Error("Failed to load gamestate", "game_id", id, "error", err)
		return nil, fmt.Errorf("failed to load gamestate: %w", err)
	}

	var snap state.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		r.logger.Error("Failed to unmarshal gamestate", "game_id", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal gamestate: %w", err)
	}
	if snap.State == nil {
		snap.State = state.GameState{}
	}
	return &snap, nil
}

func (r *RedisStorage) DeleteSnapshot(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, snapshotKey(id)).Err(); err != nil {
		r.logger.Error("Failed to delete gamestate", "game_id", id, "error", err)
		return fmt.Errorf("failed to delete gamestate: %w", err)
	}
	return nil
}
