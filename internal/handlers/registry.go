package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/story-state/internal/storage"
	"github.com/jwebster45206/story-state/pkg/command"
	"github.com/jwebster45206/story-state/pkg/session"
	"github.com/jwebster45206/story-state/pkg/state"
)

// Registry keeps live sessions in memory and their canonical state in
// storage. Pending queues are process-local and are not persisted.
type Registry struct {
	mu          sync.Mutex
	sessions    map[uuid.UUID]*session.Session
	storage     storage.Storage
	logger      *slog.Logger
	stopOnError bool
}

func NewRegistry(store storage.Storage, logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*session.Session),
		storage:  store,
		logger:   logger,
	}
}

// WithStopOnError applies the batch policy to every session the registry
// creates or loads. Returns the Registry for method chaining.
func (r *Registry) WithStopOnError(stop bool) *Registry {
	r.stopOnError = stop
	return r
}

// Create starts a new session and persists its initial state.
func (r *Registry) Create(ctx context.Context, gs state.GameState) (*session.Session, error) {
	s := session.New(uuid.New(), gs, r.logger).WithStopOnError(r.stopOnError)
	if err := r.storage.SaveSnapshot(ctx, s.Snapshot()); err != nil {
		return nil, fmt.Errorf("failed to save new game state: %w", err)
	}

	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	return s, nil
}

// Get returns the live session for id, loading it from storage on first
// access. Returns nil, nil if the game does not exist.
//
// Storage is read without holding the registry lock; when two callers load
// the same game at once, the first one stored wins and both get it.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		return s, nil
	}

	snap, err := r.storage.LoadSnapshot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load game state: %w", err)
	}
	if snap == nil {
		return nil, nil
	}
	loaded := session.FromSnapshot(snap, r.logger).WithStopOnError(r.stopOnError)

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	r.sessions[id] = loaded
	r.logger.Debug("Loaded session from storage", "game_id", id, "turn", snap.Turn)
	return loaded, nil
}

// Confirm applies a batch to the session and persists the result. The batch
// is only committed once storage has accepted it, so a failed save can be
// retried without applying the batch twice.
func (r *Registry) Confirm(ctx context.Context, s *session.Session, cmds []command.Command, retire ...string) (command.BatchResult, error) {
	return s.ConfirmWith(cmds, func(snap *state.Snapshot) error {
		if err := r.storage.SaveSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("failed to save game state: %w", err)
		}
		return nil
	}, retire...)
}

// Delete drops the session from memory and storage.
func (r *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()

	if err := r.storage.DeleteSnapshot(ctx, id); err != nil {
		return fmt.Errorf("failed to delete game state: %w", err)
	}
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
