// Package session owns one game's canonical state and its pending-action
// queue, and is the only writer of that state.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/story-state/pkg/command"
	"github.com/jwebster45206/story-state/pkg/preview"
	"github.com/jwebster45206/story-state/pkg/queue"
	"github.com/jwebster45206/story-state/pkg/state"
)

// Session is the caller-level controller around the core: it confirms
// narrator batches into canonical state and projects the pending queue for
// display.
type Session struct {
	mu        sync.RWMutex
	id        uuid.UUID
	turn      int
	updatedAt time.Time
	canonical state.GameState

	queue   *queue.Queue
	applier *command.Applier
	builder *preview.Builder
	logger  *slog.Logger
}

// New creates a session around gs. gs is owned by the session from here on.
func New(id uuid.UUID, gs state.GameState, logger *slog.Logger) *Session {
	if gs == nil {
		gs = state.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("game_id", id.String())
	return &Session{
		id:        id,
		canonical: gs,
		updatedAt: time.Now(),
		queue:     queue.New(logger),
		applier:   command.NewApplier(logger),
		builder:   preview.NewBuilder(logger),
		logger:    logger,
	}
}

// FromSnapshot restores a session from persisted state.
func FromSnapshot(snap *state.Snapshot, logger *slog.Logger) *Session {
	s := New(snap.ID, snap.State, logger)
	s.turn = snap.Turn
	if !snap.UpdatedAt.IsZero() {
		s.updatedAt = snap.UpdatedAt
	}
	return s
}

// WithStopOnError makes Confirm abandon a batch at its first failing
// command. Returns the Session for method chaining.
func (s *Session) WithStopOnError(stop bool) *Session {
	s.applier.WithStopOnError(stop)
	return s
}

// WithSchema changes the key names the preview builder uses.
func (s *Session) WithSchema(schema preview.Schema) *Session {
	s.builder.WithSchema(schema)
	return s
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Turn() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.turn
}

// State returns the canonical tree. Callers must treat it as read-only;
// every write goes through Confirm, which replaces rather than edits it.
func (s *Session) State() state.GameState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canonical
}

// Snapshot returns a persistable deep copy of the session.
func (s *Session) Snapshot() *state.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &state.Snapshot{
		ID:        s.id,
		Turn:      s.turn,
		UpdatedAt: s.updatedAt,
		State:     s.canonical.Clone(),
	}
}

func (s *Session) Queue() *queue.Queue { return s.queue }

func (s *Session) Builder() *preview.Builder { return s.builder }

// Enqueue adds a pending player action and returns its ID.
func (s *Session) Enqueue(e queue.Entry) string {
	return s.queue.Enqueue(e)
}

// Withdraw cancels a pending action before the narrator confirms it.
func (s *Session) Withdraw(id string) bool {
	return s.queue.Dequeue(id)
}

// Preview projects the pending queue onto canonical state.
func (s *Session) Preview() state.GameState {
	return s.builder.Project(s.State(), s.queue.List())
}

// PreviewInFlight projects a batch awaiting confirmation, followed by the
// pending queue.
func (s *Session) PreviewInFlight(cmds []command.Command) state.GameState {
	entries := append([]queue.Entry{{Label: "in-flight", Commands: cmds}}, s.queue.List()...)
	return s.builder.Project(s.State(), entries)
}

// ErrPersist wraps a failure to save a confirmed batch. Canonical state is
// left as it was before the batch.
var ErrPersist = errors.New("persist confirmed state")

// PersistFunc saves the state a batch would produce. An error keeps the batch
// from being committed.
type PersistFunc func(*state.Snapshot) error

// Confirm applies a narrator-confirmed batch to canonical state in issue
// order and retires the queue entries it covers.
//
// A malformed address rejects the whole batch: nothing is applied and no
// entry is retired. Execution failures are reported in the result; the
// commands that succeeded are kept.
func (s *Session) Confirm(cmds []command.Command, retire ...string) (command.BatchResult, error) {
	return s.ConfirmWith(cmds, nil, retire...)
}

// ConfirmWith is Confirm with a persistence step. persist receives the
// snapshot of the next turn before it is committed; if it fails, canonical
// state, the turn and the queue are untouched and the error wraps
// ErrPersist. A nil persist behaves like Confirm.
func (s *Session) ConfirmWith(cmds []command.Command, persist PersistFunc, retire ...string) (command.BatchResult, error) {
	s.mu.Lock()
	result, err := s.applier.Apply(s.canonical, cmds)
	if err != nil {
		s.mu.Unlock()
		return result, err
	}

	now := time.Now()
	if persist != nil {
		snap := &state.Snapshot{
			ID:        s.id,
			Turn:      s.turn + 1,
			UpdatedAt: now,
			State:     result.State.Clone(),
		}
		if err := persist(snap); err != nil {
			s.mu.Unlock()
			s.logger.Error("Confirmed batch not committed", "turn", snap.Turn, "error", err)
			return command.BatchResult{}, fmt.Errorf("%w: %w", ErrPersist, err)
		}
	}

	s.canonical = result.State
	s.turn++
	s.updatedAt = now
	turn := s.turn
	s.mu.Unlock()

	retired := s.queue.Retire(retire...)
	s.logger.Info("Confirmed command batch",
		"turn", turn,
		"applied", result.Applied,
		"failed", len(result.Failures),
		"retired", retired)
	return result, nil
}
