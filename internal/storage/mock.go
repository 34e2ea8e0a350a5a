package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/story-state/pkg/state"
)

// MockStorage is an in-memory Storage for tests.
type MockStorage struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]*state.Snapshot
	pingError error
	saveError error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

func NewMockStorage() *MockStorage {
	return &MockStorage{
		snapshots: make(map[uuid.UUID]*state.Snapshot),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError configures the mock to fail every save with the given error
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) SaveSnapshot(ctx context.Context, snap *state.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.snapshots[snap.ID] = copySnapshot(snap)
	return nil
}

func (m *MockStorage) LoadSnapshot(ctx context.Context, id uuid.UUID) (*state.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snapshots[id]
	if !ok {
		return nil, nil
	}
	return copySnapshot(snap), nil
}

func (m *MockStorage) DeleteSnapshot(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, id)
	return nil
}

// Count returns the number of stored snapshots.
func (m *MockStorage) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots)
}

func copySnapshot(snap *state.Snapshot) *state.Snapshot {
	c := *snap
	c.State = snap.State.Clone()
	return &c
}
