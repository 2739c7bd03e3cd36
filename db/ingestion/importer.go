// Package ingestion loads schedule documents into a snapshot store
// Each schedule becomes a snapshot; unchanged schedules reuse their existing snapshot
package ingestion

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"income-tax/db"
	"income-tax/decision/schedule"
	"income-tax/decision/tax"
)

// Importer writes schedules into a store
type Importer struct {
	store  db.Store
	logger zerolog.Logger
}

// NewImporter creates an importer for a store
func NewImporter(store db.Store) *Importer {
	return &Importer{
		store:  store,
		logger: log.Logger.With().Str("component", "ingestion").Logger(),
	}
}

// WithLogger replaces the importer's logger
func (i *Importer) WithLogger(logger zerolog.Logger) *Importer {
	i.logger = logger
	return i
}

// Options controls an import
type Options struct {
	Source   string
	Activate bool
}

// ImportResult tracks the outcome for one schedule
type ImportResult struct {
	SnapshotID uuid.UUID
	Regime     tax.Regime
	Revision   string
	Alternate  bool
	Hash       string
	Created    bool
	Activated  bool
}

// ImportSummary tracks the result of an import run
type ImportSummary struct {
	Results  []ImportResult
	Created  int
	Reused   int
	Duration time.Duration
}

// ImportDocument decodes a YAML schedule document and imports it
func (i *Importer) ImportDocument(ctx context.Context, r io.Reader, opts Options) (*ImportSummary, error) {
	schedules, err := schedule.Decode(r)
	if err != nil {
		return nil, err
	}
	return i.Import(ctx, schedules, opts)
}

// Import stores each schedule as a snapshot. Every schedule is validated before
// anything is written, and the set must form a valid registry on its own.
func (i *Importer) Import(ctx context.Context, schedules []tax.Schedule, opts Options) (*ImportSummary, error) {
	start := time.Now()
	if _, err := tax.NewRegistry(schedules...); err != nil {
		return nil, fmt.Errorf("failed to validate schedules: %w", err)
	}

	summary := &ImportSummary{}
	for _, sched := range schedules {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		res, err := i.importOne(ctx, sched, opts)
		if err != nil {
			return summary, err
		}
		summary.Results = append(summary.Results, res)
		if res.Created {
			summary.Created++
		} else {
			summary.Reused++
		}
	}

	summary.Duration = time.Since(start)
	i.logger.Info().
		Int("created", summary.Created).
		Int("reused", summary.Reused).
		Bool("activated", opts.Activate).
		Dur("duration", summary.Duration).
		Msg("Schedule import complete")
	return summary, nil
}

func (i *Importer) importOne(ctx context.Context, sched tax.Schedule, opts Options) (ImportResult, error) {
	hash := schedule.Fingerprint(sched)
	res := ImportResult{
		Regime:    sched.Regime,
		Revision:  sched.Revision,
		Alternate: sched.Alternate,
		Hash:      hash,
	}

	existing, err := i.store.FindSnapshotByHash(ctx, sched.Regime, sched.Alternate, hash)
	if err != nil {
		return res, err
	}

	if existing != nil {
		res.SnapshotID = existing.ID
		res.Activated = existing.IsActive
		i.logger.Debug().Str("snapshot", existing.ID.String()).Str("regime", string(sched.Regime)).Msg("Schedule unchanged, reusing snapshot")
	} else {
		snap, rows := db.NewSnapshot(sched, opts.Source)
		if err := i.store.CreateSnapshot(ctx, snap, rows); err != nil {
			return res, fmt.Errorf("failed to create snapshot for %s/%s: %w", sched.Regime, sched.Revision, err)
		}
		res.SnapshotID = snap.ID
		res.Created = true
	}

	if opts.Activate && !res.Activated {
		if err := i.store.ActivateSnapshot(ctx, res.SnapshotID); err != nil {
			return res, fmt.Errorf("failed to activate snapshot %s: %w", res.SnapshotID, err)
		}
		res.Activated = true
	}
	return res, nil
}
