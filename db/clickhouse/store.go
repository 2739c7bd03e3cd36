// Package clickhouse provides the ClickHouse implementation of the schedule snapshot store
// Tables are ReplacingMergeTree; updates insert a higher _version and reads use FINAL
package clickhouse

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"income-tax/db"
	"income-tax/decision/tax"
)

//go:embed schema.sql
var schemaDDL string

// Config holds ClickHouse connection configuration
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "taxcalc",
		Username: "default",
		Password: "",
		Debug:    false,
	}
}

// Store implements db.Store using ClickHouse
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

var _ db.Store = (*Store)(nil)

// NewStore creates a new ClickHouse schedule store
func NewStore(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	return &Store{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureSchema creates the snapshot tables if they do not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range statements(schemaDDL) {
		if err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Load implements schedule.Source over the active snapshots
func (s *Store) Load(ctx context.Context) ([]tax.Schedule, error) {
	return db.LoadActive(ctx, s)
}

// =============================================================================
// SNAPSHOT OPERATIONS
// =============================================================================

const snapshotColumns = `id, regime, revision, alternate, standard_deduction, rebate_threshold,
			   itemized_deductions, source, hash, is_active, created_at`

// CreateSnapshot inserts a snapshot and batch-inserts its slabs
func (s *Store) CreateSnapshot(ctx context.Context, snapshot *db.Snapshot, slabs []db.SlabRow) error {
	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}

	// Slabs go first so a snapshot row is never visible without its slabs
	if err := s.insertSlabs(ctx, snapshot.ID, slabs); err != nil {
		return err
	}

	query := `
		INSERT INTO tax_schedule_snapshots (` + snapshotColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if err := s.conn.Exec(ctx, query,
		snapshot.ID,
		string(snapshot.Regime),
		snapshot.Revision,
		boolToUInt8(snapshot.Alternate),
		snapshot.StandardDeduction,
		snapshot.RebateThreshold,
		boolToUInt8(snapshot.ItemizedDeductions),
		snapshot.Source,
		snapshot.Hash,
		boolToUInt8(snapshot.IsActive),
		snapshot.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

func (s *Store) insertSlabs(ctx context.Context, id uuid.UUID, slabs []db.SlabRow) error {
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO tax_schedule_slabs (snapshot_id, position, up_to, rate)`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, row := range slabs {
		if err := batch.Append(id, uint16(row.Position), row.UpTo, row.Rate); err != nil {
			batch.Abort()
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send slab batch: %w", err)
	}
	return nil
}

// GetSnapshot retrieves a snapshot by ID
func (s *Store) GetSnapshot(ctx context.Context, id uuid.UUID) (*db.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM tax_schedule_snapshots FINAL
		WHERE id = ? AND _deleted = 0
	`
	snapshot, err := scanSnapshot(s.conn.QueryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return snapshot, nil
}

// FindSnapshotByHash finds a snapshot by its content hash; nil when none matches
func (s *Store) FindSnapshotByHash(ctx context.Context, regime tax.Regime, alternate bool, hash string) (*db.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM tax_schedule_snapshots FINAL
		WHERE regime = ? AND alternate = ? AND hash = ? AND _deleted = 0
		LIMIT 1
	`
	snapshot, err := scanSnapshot(s.conn.QueryRow(ctx, query, string(regime), boolToUInt8(alternate), hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find snapshot by hash: %w", err)
	}
	return snapshot, nil
}

// ActivateSnapshot marks a snapshot active and deactivates the others for its regime revision slot
func (s *Store) ActivateSnapshot(ctx context.Context, id uuid.UUID) error {
	snapshot, err := s.GetSnapshot(ctx, id)
	if err != nil {
		return err
	}

	deactivateQuery := `
		INSERT INTO tax_schedule_snapshots
		SELECT id, regime, revision, alternate, standard_deduction, rebate_threshold,
			   itemized_deductions, source, hash, 0 as is_active, created_at,
			   _version + 1 as _version, _deleted
		FROM tax_schedule_snapshots FINAL
		WHERE regime = ? AND alternate = ?
		  AND is_active = 1 AND _deleted = 0 AND id != ?
	`
	if err := s.conn.Exec(ctx, deactivateQuery, string(snapshot.Regime), boolToUInt8(snapshot.Alternate), id); err != nil {
		return fmt.Errorf("failed to deactivate snapshots: %w", err)
	}

	activateQuery := `
		INSERT INTO tax_schedule_snapshots
		SELECT id, regime, revision, alternate, standard_deduction, rebate_threshold,
			   itemized_deductions, source, hash, 1 as is_active, created_at,
			   _version + 1 as _version, _deleted
		FROM tax_schedule_snapshots FINAL
		WHERE id = ?
	`
	if err := s.conn.Exec(ctx, activateQuery, id); err != nil {
		return fmt.Errorf("failed to activate snapshot: %w", err)
	}
	return nil
}

// ListSnapshots lists every snapshot, newest first
func (s *Store) ListSnapshots(ctx context.Context) ([]*db.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM tax_schedule_snapshots FINAL
		WHERE _deleted = 0
		ORDER BY created_at DESC
	`
	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*db.Snapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}

// =============================================================================
// SLAB OPERATIONS
// =============================================================================

// ListSlabs returns a snapshot's slabs in order
func (s *Store) ListSlabs(ctx context.Context, snapshotID uuid.UUID) ([]db.SlabRow, error) {
	query := `
		SELECT position, up_to, rate
		FROM tax_schedule_slabs FINAL
		WHERE snapshot_id = ? AND _deleted = 0
		ORDER BY position
	`
	rows, err := s.conn.Query(ctx, query, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list slabs: %w", err)
	}
	defer rows.Close()

	var slabs []db.SlabRow
	for rows.Next() {
		var (
			position uint16
			upTo     *decimal.Decimal
			rate     decimal.Decimal
		)
		if err := rows.Scan(&position, &upTo, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan slab: %w", err)
		}
		slabs = append(slabs, db.SlabRow{
			SnapshotID: snapshotID,
			Position:   int(position),
			UpTo:       upTo,
			Rate:       rate,
		})
	}
	return slabs, rows.Err()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*db.Snapshot, error) {
	var (
		snapshot                      db.Snapshot
		regime                        string
		alternate, itemized, isActive uint8
	)
	if err := row.Scan(
		&snapshot.ID, &regime, &snapshot.Revision, &alternate,
		&snapshot.StandardDeduction, &snapshot.RebateThreshold, &itemized,
		&snapshot.Source, &snapshot.Hash, &isActive, &snapshot.CreatedAt,
	); err != nil {
		return nil, err
	}
	snapshot.Regime = tax.Regime(regime)
	snapshot.Alternate = alternate == 1
	snapshot.ItemizedDeductions = itemized == 1
	snapshot.IsActive = isActive == 1
	return &snapshot, nil
}

// statements splits a DDL script into single statements; the native protocol runs one at a time
func statements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
