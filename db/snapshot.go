// Package db defines the schedule snapshot model shared by the storage backends
// A snapshot is one stored revision of a regime's schedule; at most one per (regime, alternate) is active
package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"income-tax/decision/schedule"
	"income-tax/decision/tax"
)

// ErrSnapshotNotFound is returned when a snapshot id does not exist
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is a stored schedule revision
type Snapshot struct {
	ID                 uuid.UUID        `ch:"id"`
	Regime             tax.Regime       `ch:"regime"`
	Revision           string           `ch:"revision"`
	Alternate          bool             `ch:"alternate"`
	StandardDeduction  decimal.Decimal  `ch:"standard_deduction"`
	RebateThreshold    *decimal.Decimal `ch:"rebate_threshold"`
	ItemizedDeductions bool             `ch:"itemized_deductions"`
	Source             string           `ch:"source"`
	Hash               string           `ch:"hash"`
	IsActive           bool             `ch:"is_active"`
	CreatedAt          time.Time        `ch:"created_at"`
}

// SlabRow is one slab of a snapshot, ordered by Position
type SlabRow struct {
	SnapshotID uuid.UUID        `ch:"snapshot_id"`
	Position   int              `ch:"position"`
	UpTo       *decimal.Decimal `ch:"up_to"`
	Rate       decimal.Decimal  `ch:"rate"`
}

// Store persists schedule snapshots
type Store interface {
	CreateSnapshot(ctx context.Context, snapshot *Snapshot, slabs []SlabRow) error
	GetSnapshot(ctx context.Context, id uuid.UUID) (*Snapshot, error)
	FindSnapshotByHash(ctx context.Context, regime tax.Regime, alternate bool, hash string) (*Snapshot, error)
	ActivateSnapshot(ctx context.Context, id uuid.UUID) error
	ListSnapshots(ctx context.Context) ([]*Snapshot, error)
	ListSlabs(ctx context.Context, snapshotID uuid.UUID) ([]SlabRow, error)
}

// NewSnapshot builds an inactive snapshot and its slab rows from a schedule
func NewSnapshot(s tax.Schedule, source string) (*Snapshot, []SlabRow) {
	snap := &Snapshot{
		ID:                 uuid.New(),
		Regime:             s.Regime,
		Revision:           s.Revision,
		Alternate:          s.Alternate,
		StandardDeduction:  s.StandardDeduction,
		RebateThreshold:    s.RebateThreshold,
		ItemizedDeductions: s.ItemizedDeductions,
		Source:             source,
		Hash:               schedule.Fingerprint(s),
		CreatedAt:          time.Now().UTC(),
	}

	slabs := s.Table.Slabs()
	rows := make([]SlabRow, len(slabs))
	for i, slab := range slabs {
		rows[i] = SlabRow{
			SnapshotID: snap.ID,
			Position:   i,
			UpTo:       slab.UpTo,
			Rate:       slab.Rate,
		}
	}
	return snap, rows
}

// Schedule rebuilds the schedule a snapshot stores. Rows are validated like any other table.
func (s *Snapshot) Schedule(rows []SlabRow) (tax.Schedule, error) {
	ordered := make([]SlabRow, len(rows))
	copy(ordered, rows)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	slabs := make([]tax.Slab, len(ordered))
	for i, row := range ordered {
		slabs[i] = tax.Slab{UpTo: row.UpTo, Rate: row.Rate}
	}
	table, err := tax.NewSlabTable(slabs)
	if err != nil {
		return tax.Schedule{}, fmt.Errorf("snapshot %s: %w", s.ID, err)
	}

	sched := tax.Schedule{
		Regime:             s.Regime,
		Revision:           s.Revision,
		Alternate:          s.Alternate,
		Table:              table,
		StandardDeduction:  s.StandardDeduction,
		RebateThreshold:    s.RebateThreshold,
		ItemizedDeductions: s.ItemizedDeductions,
	}
	if err := sched.Validate(); err != nil {
		return tax.Schedule{}, fmt.Errorf("snapshot %s: %w", s.ID, err)
	}
	return sched, nil
}

// LoadActive returns the schedules of every active snapshot
func LoadActive(ctx context.Context, store Store) ([]tax.Schedule, error) {
	snapshots, err := store.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	var schedules []tax.Schedule
	for _, snap := range snapshots {
		if !snap.IsActive {
			continue
		}
		rows, err := store.ListSlabs(ctx, snap.ID)
		if err != nil {
			return nil, err
		}
		sched, err := snap.Schedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sched)
	}

	if len(schedules) == 0 {
		return nil, fmt.Errorf("no active schedule snapshots")
	}
	return schedules, nil
}
