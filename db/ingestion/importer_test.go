package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"income-tax/db"
	"income-tax/decision/schedule"
	"income-tax/decision/tax"
	taxerrors "income-tax/pkg/errors"
)

const oldRegimeDoc = `
schedules:
  - regime: old
    revision: fy2024-25
    standard_deduction: 50000
    rebate_threshold: 500000
    itemized_deductions: true
    slabs:
      - upto: 250000
        rate: 0
      - upto: 500000
        rate: 0.05
      - upto: 1000000
        rate: 0.20
      - rate: 0.30
`

func newImporter(store db.Store) *Importer {
	return NewImporter(store).WithLogger(zerolog.Nop())
}

func TestImportDocument(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	imp := newImporter(store)

	summary, err := imp.ImportDocument(ctx, strings.NewReader(oldRegimeDoc), Options{Source: "test.yaml", Activate: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 0, summary.Reused)
	require.Len(t, summary.Results, 1)
	assert.True(t, summary.Results[0].Activated)

	reg, err := schedule.Registry(ctx, store)
	require.NoError(t, err)
	old, err := reg.Lookup(tax.RegimeOld, false)
	require.NoError(t, err)
	builtin, err := tax.DefaultRegistry().Lookup(tax.RegimeOld, false)
	require.NoError(t, err)
	assert.Equal(t, schedule.Fingerprint(builtin), schedule.Fingerprint(old))

	snap, err := store.GetSnapshot(ctx, summary.Results[0].SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, "test.yaml", snap.Source)
}

func TestImportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	imp := newImporter(store)

	first, err := imp.Import(ctx, tax.BuiltinSchedules(), Options{Source: "builtin", Activate: true})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Created)

	second, err := imp.Import(ctx, tax.BuiltinSchedules(), Options{Source: "builtin", Activate: true})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 3, second.Reused)
	for i := range second.Results {
		assert.Equal(t, first.Results[i].SnapshotID, second.Results[i].SnapshotID)
	}

	snapshots, err := store.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshots, 3)
}

func TestImportWithoutActivation(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()

	summary, err := newImporter(store).Import(ctx, tax.BuiltinSchedules(), Options{Source: "builtin"})
	require.NoError(t, err)
	for _, res := range summary.Results {
		assert.False(t, res.Activated)
	}

	_, err = store.Load(ctx)
	assert.Error(t, err, "nothing is active yet")
}

func TestImportRejectsInvalidSets(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	imp := newImporter(store)

	dup := append(tax.BuiltinSchedules(), tax.BuiltinSchedules()[0])
	_, err := imp.Import(ctx, dup, Options{})
	assert.Equal(t, taxerrors.CodeDuplicateSchedule, taxerrors.CodeOf(err))

	_, err = imp.ImportDocument(ctx, strings.NewReader("schedules: []\n"), Options{})
	assert.Equal(t, taxerrors.CodeMalformedSchedule, taxerrors.CodeOf(err))

	snapshots, err := store.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Empty(t, snapshots, "a rejected import writes nothing")
}

type failingStore struct {
	*db.MemoryStore
}

func (failingStore) ActivateSnapshot(context.Context, uuid.UUID) error {
	return errors.New("write timeout")
}

func TestImportActivationFailure(t *testing.T) {
	store := failingStore{db.NewMemoryStore()}
	_, err := newImporter(store).Import(context.Background(), tax.BuiltinSchedules(), Options{Activate: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to activate snapshot")
}
