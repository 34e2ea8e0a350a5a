// Package queue holds the local player's pending actions until the narrator
// confirms them.
package queue

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/story-state/pkg/command"
)

// Queue is an ordered list of pending entries with dedupe-key replacement.
// It has a single logical consumer; the mutex only makes it safe to share
// with an HTTP surface.
type Queue struct {
	mu      sync.Mutex
	entries []Entry
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Queue {
	return &Queue{logger: logger}
}

// Enqueue adds e to the end of the queue and returns its ID.
//
// If e.ID or e.DedupeKey matches a queued entry, e takes that entry's
// position instead of being appended. An ID match wins the position; an
// entry that only shares the dedupe key is then dropped, so IDs and keys
// both stay unique. Superseded entries do not run their Reversal.
func (q *Queue) Enqueue(e Entry) string {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.EnqueuedAt.IsZero() {
		e.EnqueuedAt = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	idIdx := slices.IndexFunc(q.entries, func(existing Entry) bool { return existing.ID == e.ID })
	keyIdx := -1
	if e.DedupeKey != "" {
		keyIdx = slices.IndexFunc(q.entries, func(existing Entry) bool { return existing.DedupeKey == e.DedupeKey })
	}

	idx := idIdx
	if idx < 0 {
		idx = keyIdx
	}
	if idx >= 0 {
		if q.logger != nil {
			q.logger.Debug("Replacing queued action",
				"old_id", q.entries[idx].ID,
				"new_id", e.ID,
				"dedupe_key", e.DedupeKey,
				"label", e.Label)
		}
		q.entries[idx] = e
		if keyIdx >= 0 && keyIdx != idx {
			if q.logger != nil {
				q.logger.Debug("Dropping action superseded by dedupe key",
					"id", q.entries[keyIdx].ID, "dedupe_key", e.DedupeKey)
			}
			q.entries = slices.Delete(q.entries, keyIdx, keyIdx+1)
		}
		return e.ID
	}

	q.entries = append(q.entries, e)
	if q.logger != nil {
		q.logger.Debug("Queued action", "id", e.ID, "label", e.Label, "depth", len(q.entries))
	}
	return e.ID
}

// Dequeue withdraws the entry with the given ID, running its Reversal.
// Returns false if no such entry is queued.
func (q *Queue) Dequeue(id string) bool {
	q.mu.Lock()
	idx := slices.IndexFunc(q.entries, func(e Entry) bool { return e.ID == id })
	if idx < 0 {
		q.mu.Unlock()
		return false
	}
	removed := q.entries[idx]
	q.entries = slices.Delete(q.entries, idx, idx+1)
	q.mu.Unlock()

	// Outside the lock: the callback may look at the queue.
	if removed.Reversal != nil {
		removed.Reversal()
	}
	if q.logger != nil {
		q.logger.Debug("Withdrew queued action", "id", id, "label", removed.Label)
	}
	return true
}

// Retire drops entries whose effects the narrator has confirmed. Reversals
// are not run. Returns how many entries were removed.
func (q *Queue) Retire(ids ...string) int {
	if len(ids) == 0 {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	before := len(q.entries)
	q.entries = slices.DeleteFunc(q.entries, func(e Entry) bool {
		return slices.Contains(ids, e.ID)
	})
	return before - len(q.entries)
}

// RetireAll drops every entry without running reversals, returning them.
func (q *Queue) RetireAll() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.entries
	q.entries = nil
	return out
}

// Clear withdraws every entry, running reversals newest first.
func (q *Queue) Clear() {
	q.mu.Lock()
	withdrawn := q.entries
	q.entries = nil
	q.mu.Unlock()

	for _, e := range slices.Backward(withdrawn) {
		if e.Reversal != nil {
			e.Reversal()
		}
	}
}

// List returns a copy of the queued entries in order.
func (q *Queue) List() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.entries)
}

// Get returns the entry with the given ID.
func (q *Queue) Get(id string) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := slices.IndexFunc(q.entries, func(e Entry) bool { return e.ID == id })
	if idx < 0 {
		return Entry{}, false
	}
	return q.entries[idx], true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Commands flattens every entry's commands in queue order. This is the batch
// sent to the narrator for confirmation.
func (q *Queue) Commands() []command.Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	var cmds []command.Command
	for _, e := range q.entries {
		cmds = append(cmds, e.Commands...)
	}
	return cmds
}
