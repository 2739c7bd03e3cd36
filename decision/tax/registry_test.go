package tax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taxerrors "income-tax/pkg/errors"
)

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()

	assert.Equal(t, []Regime{RegimeNew, RegimeOld}, reg.Regimes())
	assert.True(t, reg.HasAlternate(RegimeNew))
	assert.False(t, reg.HasAlternate(RegimeOld))

	schedules := reg.Schedules()
	require.Len(t, schedules, 3)
	assert.Equal(t, "fy2024-25", schedules[0].Revision)
	assert.Equal(t, "budget-2025", schedules[1].Revision)
	assert.Equal(t, RegimeOld, schedules[2].Regime)

	old, err := reg.Lookup(RegimeOld, false)
	require.NoError(t, err)
	assert.True(t, old.ItemizedDeductions)
	assertDecimal(t, "50000", old.StandardDeduction)
	assertDecimal(t, "500000", *old.RebateThreshold)
	assert.Equal(t, 4, old.Table.Len())
}

func TestRegistryLookup(t *testing.T) {
	reg := DefaultRegistry()

	alt, err := reg.Lookup(RegimeNew, true)
	require.NoError(t, err)
	assert.Equal(t, "budget-2025", alt.Revision)
	assert.True(t, alt.Alternate)

	fallback, err := reg.Lookup(RegimeOld, true)
	require.NoError(t, err)
	assert.False(t, fallback.Alternate)

	_, err = reg.Lookup(Regime("flat"), false)
	assert.ErrorIs(t, err, taxerrors.ErrInvalidInput)
	assert.Equal(t, taxerrors.CodeUnknownRegime, taxerrors.CodeOf(err))
}

func TestNewRegistryErrors(t *testing.T) {
	base := plainOldTable()

	alternateOnly := plainOldTable()
	alternateOnly.Alternate = true

	negativeRebate := plainOldTable()
	negativeRebate.RebateThreshold = amount(-1)

	noRevision := plainOldTable()
	noRevision.Revision = ""

	unknown := plainOldTable()
	unknown.Regime = Regime("flat")

	negativeDeduction := plainOldTable()
	negativeDeduction.StandardDeduction = d("-10")

	tests := []struct {
		name      string
		schedules []Schedule
		code      taxerrors.Code
	}{
		{"duplicate", []Schedule{base, base}, taxerrors.CodeDuplicateSchedule},
		{"alternate without default", []Schedule{alternateOnly}, taxerrors.CodeMalformedSchedule},
		{"negative rebate", []Schedule{negativeRebate}, taxerrors.CodeMalformedSchedule},
		{"missing revision", []Schedule{noRevision}, taxerrors.CodeMalformedSchedule},
		{"unknown regime", []Schedule{unknown}, taxerrors.CodeUnknownRegime},
		{"negative standard deduction", []Schedule{negativeDeduction}, taxerrors.CodeMalformedSchedule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := NewRegistry(tt.schedules...)
			require.Error(t, err)
			assert.Nil(t, reg)
			assert.Equal(t, tt.code, taxerrors.CodeOf(err))
		})
	}
}
