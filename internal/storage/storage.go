package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwebster45206/story-state/pkg/state"
)

// Storage persists canonical game state between turns.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// SaveSnapshot stores the snapshot under its ID, replacing any previous one.
	SaveSnapshot(ctx context.Context, snap *state.Snapshot) error
	// LoadSnapshot returns nil, nil when no snapshot exists for id.
	LoadSnapshot(ctx context.Context, id uuid.UUID) (*state.Snapshot, error)
	DeleteSnapshot(ctx context.Context, id uuid.UUID) error
}

func snapshotKey(id uuid.UUID) string {
	return "gamestate:" + id.String()
}
