package db

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"income-tax/decision/tax"
)

// MemoryStore is an in-process Store, used by tests and single-run imports
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]Snapshot
	slabs     map[uuid.UUID][]SlabRow
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[uuid.UUID]Snapshot),
		slabs:     make(map[uuid.UUID][]SlabRow),
	}
}

// CreateSnapshot stores a snapshot and its slabs
func (m *MemoryStore) CreateSnapshot(ctx context.Context, snapshot *Snapshot, slabs []SlabRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots[snapshot.ID] = *snapshot
	m.slabs[snapshot.ID] = append([]SlabRow(nil), slabs...)
	return nil
}

// GetSnapshot returns a snapshot by id
func (m *MemoryStore) GetSnapshot(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[id]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return &snap, nil
}

// FindSnapshotByHash returns the snapshot with the given content hash, or nil
func (m *MemoryStore) FindSnapshotByHash(ctx context.Context, regime tax.Regime, alternate bool, hash string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, snap := range m.snapshots {
		if snap.Regime == regime && snap.Alternate == alternate && snap.Hash == hash {
			return &snap, nil
		}
	}
	return nil, nil
}

// ActivateSnapshot marks one snapshot active and deactivates its siblings
func (m *MemoryStore) ActivateSnapshot(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.snapshots[id]
	if !ok {
		return ErrSnapshotNotFound
	}
	for sid, snap := range m.snapshots {
		if snap.Regime == target.Regime && snap.Alternate == target.Alternate {
			snap.IsActive = sid == id
			m.snapshots[sid] = snap
		}
	}
	return nil
}

// ListSnapshots returns every snapshot, newest first
func (m *MemoryStore) ListSnapshots(ctx context.Context) ([]*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Snapshot, 0, len(m.snapshots))
	for _, snap := range m.snapshots {
		snap := snap
		out = append(out, &snap)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ListSlabs returns a snapshot's slabs in order
func (m *MemoryStore) ListSlabs(ctx context.Context, snapshotID uuid.UUID) ([]SlabRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := append([]SlabRow(nil), m.slabs[snapshotID]...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Position < rows[j].Position })
	return rows, nil
}

// Load implements schedule.Source over the active snapshots
func (m *MemoryStore) Load(ctx context.Context) ([]tax.Schedule, error) {
	return LoadActive(ctx, m)
}
