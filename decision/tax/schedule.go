package tax

import (
	"sync"

	"github.com/shopspring/decimal"

	taxerrors "income-tax/pkg/errors"
)

// Schedule binds a regime revision to its slab table and deduction policy
type Schedule struct {
	Regime             Regime           `json:"regime"`
	Revision           string           `json:"revision"`
	Alternate          bool             `json:"alternate"`
	Table              SlabTable        `json:"slabs"`
	StandardDeduction  decimal.Decimal  `json:"standard_deduction"`
	RebateThreshold    *decimal.Decimal `json:"rebate_threshold,omitempty"`
	ItemizedDeductions bool             `json:"itemized_deductions"`
}

// Validate checks the schedule's own invariants; the table is validated at construction
func (s Schedule) Validate() error {
	if _, err := ParseRegime(string(s.Regime)); err != nil {
		return err
	}
	if s.Revision == "" {
		return taxerrors.NewMalformedScheduleError("regime %q: revision name is required", s.Regime)
	}
	if s.Table.IsZero() {
		return taxerrors.NewMalformedScheduleError("regime %q revision %q: slab table is empty", s.Regime, s.Revision)
	}
	if s.StandardDeduction.IsNegative() {
		return taxerrors.NewMalformedScheduleError("regime %q revision %q: negative standard deduction %s", s.Regime, s.Revision, s.StandardDeduction)
	}
	if s.RebateThreshold != nil && s.RebateThreshold.IsNegative() {
		return taxerrors.NewMalformedScheduleError("regime %q revision %q: negative rebate threshold %s", s.Regime, s.Revision, *s.RebateThreshold)
	}
	return nil
}

// =============================================================================
// BUILT-IN SCHEDULES
// =============================================================================

func lakh(n float64) decimal.Decimal {
	return decimal.NewFromFloat(n).Mul(decimal.NewFromInt(100000))
}

func pct(n int64) decimal.Decimal {
	return decimal.New(n, -2)
}

func amount(n int64) *decimal.Decimal {
	d := decimal.NewFromInt(n)
	return &d
}

// BuiltinSchedules returns the schedules shipped with the engine
func BuiltinSchedules() []Schedule {
	return []Schedule{
		{
			Regime:   RegimeNew,
			Revision: "fy2024-25",
			Table: MustSlabTable(
				BoundedSlab(lakh(3), pct(0)),
				BoundedSlab(lakh(7), pct(5)),
				BoundedSlab(lakh(10), pct(10)),
				BoundedSlab(lakh(12), pct(15)),
				BoundedSlab(lakh(15), pct(20)),
				UnboundedSlab(pct(30)),
			),
			StandardDeduction: decimal.NewFromInt(75000),
			RebateThreshold:   amount(700000),
		},
		{
			Regime:    RegimeNew,
			Revision:  "budget-2025",
			Alternate: true,
			Table: MustSlabTable(
				BoundedSlab(lakh(4), pct(0)),
				BoundedSlab(lakh(8), pct(5)),
				BoundedSlab(lakh(12), pct(10)),
				BoundedSlab(lakh(16), pct(15)),
				BoundedSlab(lakh(20), pct(20)),
				BoundedSlab(lakh(24), pct(25)),
				UnboundedSlab(pct(30)),
			),
			StandardDeduction: decimal.NewFromInt(75000),
			RebateThreshold:   amount(1200000),
		},
		{
			Regime:   RegimeOld,
			Revision: "fy2024-25",
			Table: MustSlabTable(
				BoundedSlab(lakh(2.5), pct(0)),
				BoundedSlab(lakh(5), pct(5)),
				BoundedSlab(lakh(10), pct(20)),
				UnboundedSlab(pct(30)),
			),
			StandardDeduction:  decimal.NewFromInt(50000),
			RebateThreshold:    amount(500000),
			ItemizedDeductions: true,
		},
	}
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := NewRegistry(BuiltinSchedules()...)
	if err != nil {
		panic(err)
	}
	return r
})

// DefaultRegistry returns the registry of built-in schedules
func DefaultRegistry() *Registry {
	return defaultRegistry()
}
