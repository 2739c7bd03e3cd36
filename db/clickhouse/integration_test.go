//go:build integration
// +build integration

package clickhouse_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcclickhouse "github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"income-tax/db"
	"income-tax/db/clickhouse"
	"income-tax/db/ingestion"
	"income-tax/decision/schedule"
	"income-tax/decision/tax"
)

// setupStore starts a ClickHouse container and returns a migrated store
func setupStore(t *testing.T) *clickhouse.Store {
	ctx := context.Background()

	container, err := tcclickhouse.RunContainer(ctx,
		testcontainers.WithImage("clickhouse/clickhouse-server:23.3.8.21-alpine"),
		tcclickhouse.WithUsername("test"),
		tcclickhouse.WithPassword("test"),
		tcclickhouse.WithDatabase("taxcalc_test"),
	)
	require.NoError(t, err, "failed to start ClickHouse container")
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)

	store, err := clickhouse.NewStore(&clickhouse.Config{
		Host:     host,
		Port:     port.Int(),
		Database: "taxcalc_test",
		Username: "test",
		Password: "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	for i := 0; i < 30; i++ {
		if err = store.Ping(ctx); err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "failed to connect to database")

	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx), "schema is idempotent")
	return store
}

func TestStore_SnapshotLifecycle(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	summary, err := ingestion.NewImporter(store).Import(ctx, tax.BuiltinSchedules(), ingestion.Options{Source: "builtin", Activate: true})
	require.NoError(t, err)
	assert.Equal(t, len(tax.BuiltinSchedules()), summary.Created)

	snapshots, err := store.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshots, len(tax.BuiltinSchedules()))

	reg, err := schedule.Registry(ctx, store)
	require.NoError(t, err)
	for _, want := range tax.BuiltinSchedules() {
		got, err := reg.Lookup(want.Regime, want.Alternate)
		require.NoError(t, err)
		assert.Equal(t, schedule.Fingerprint(want), schedule.Fingerprint(got))
	}

	result, err := tax.NewCalculator(reg).Compute(tax.TaxInput{
		Income: decimal.NewFromInt(1000000),
		Regime: tax.RegimeOld,
	})
	require.NoError(t, err)
	assert.Equal(t, "112500.00", result.TotalTax.StringFixed(2))

	again, err := ingestion.NewImporter(store).Import(ctx, tax.BuiltinSchedules(), ingestion.Options{Source: "builtin", Activate: true})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, len(tax.BuiltinSchedules()), again.Reused)
}

func TestStore_ActivationSwapsRevision(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	old, err := tax.DefaultRegistry().Lookup(tax.RegimeOld, false)
	require.NoError(t, err)

	first, rows := db.NewSnapshot(old, "v1")
	require.NoError(t, store.CreateSnapshot(ctx, first, rows))
	require.NoError(t, store.ActivateSnapshot(ctx, first.ID))

	revised := old
	revised.Revision = "fy2025-26"
	second, rows := db.NewSnapshot(revised, "v2")
	require.NoError(t, store.CreateSnapshot(ctx, second, rows))
	require.NoError(t, store.ActivateSnapshot(ctx, second.ID))

	got, err := store.GetSnapshot(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	found, err := store.FindSnapshotByHash(ctx, tax.RegimeOld, false, second.Hash)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.IsActive)
	require.NotNil(t, found.RebateThreshold)
	assert.Equal(t, "500000", found.RebateThreshold.String())

	slabs, err := store.ListSlabs(ctx, second.ID)
	require.NoError(t, err)
	assert.Len(t, slabs, len(rows))

	_, err = store.GetSnapshot(ctx, uuid.New())
	assert.ErrorIs(t, err, db.ErrSnapshotNotFound)
}

func TestStore_FailedCreateLeavesNoSnapshot(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	sched, err := tax.DefaultRegistry().Lookup(tax.RegimeNew, false)
	require.NoError(t, err)
	snap, rows := db.NewSnapshot(sched, "builtin")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.Error(t, store.CreateSnapshot(cancelled, snap, rows))

	found, err := store.FindSnapshotByHash(ctx, sched.Regime, sched.Alternate, snap.Hash)
	require.NoError(t, err)
	assert.Nil(t, found)

	summary, err := ingestion.NewImporter(store).Import(ctx, []tax.Schedule{sched}, ingestion.Options{Source: "builtin", Activate: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)

	reg, err := schedule.Registry(ctx, store)
	require.NoError(t, err)
	got, err := reg.Lookup(tax.RegimeNew, false)
	require.NoError(t, err)
	assert.Equal(t, schedule.Fingerprint(sched), schedule.Fingerprint(got))
}
