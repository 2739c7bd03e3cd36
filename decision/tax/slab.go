// Package tax provides the progressive slab-based income tax engine
// Deduction handling, schedule selection and the bracket walk live here; nothing in it performs I/O
package tax

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	taxerrors "income-tax/pkg/errors"
)

// Slab is one bracket of a slab table. A nil UpTo means the bracket is unbounded.
type Slab struct {
	UpTo *decimal.Decimal `json:"up_to,omitempty"`
	Rate decimal.Decimal  `json:"rate"`
}

// BoundedSlab returns a slab covering income up to and including upTo
func BoundedSlab(upTo, rate decimal.Decimal) Slab {
	return Slab{UpTo: &upTo, Rate: rate}
}

// UnboundedSlab returns the top slab
func UnboundedSlab(rate decimal.Decimal) Slab {
	return Slab{Rate: rate}
}

// Unbounded reports whether the slab has no upper threshold
func (s Slab) Unbounded() bool {
	return s.UpTo == nil
}

// SlabTable is an immutable, validated rate schedule.
// Bounds strictly increase, rates never decrease, and the last slab is unbounded.
type SlabTable struct {
	slabs []Slab
}

// NewSlabTable validates slabs and returns a table holding its own copy of them
func NewSlabTable(slabs []Slab) (SlabTable, error) {
	if len(slabs) == 0 {
		return SlabTable{}, taxerrors.NewMalformedScheduleError("slab table is empty")
	}

	prevBound := decimal.Zero
	prevRate := decimal.Zero
	out := make([]Slab, len(slabs))

	for i, s := range slabs {
		if s.Rate.IsNegative() || s.Rate.GreaterThan(one) {
			return SlabTable{}, taxerrors.NewMalformedScheduleError("slab %d: rate %s outside [0, 1]", i+1, s.Rate)
		}
		if i > 0 && s.Rate.LessThan(prevRate) {
			return SlabTable{}, taxerrors.NewMalformedScheduleError("slab %d: rate %s lower than previous rate %s", i+1, s.Rate, prevRate)
		}

		last := i == len(slabs)-1
		if s.UpTo == nil {
			if !last {
				return SlabTable{}, taxerrors.NewMalformedScheduleError("slab %d: only the last slab may be unbounded", i+1)
			}
		} else {
			if last {
				return SlabTable{}, taxerrors.NewMalformedScheduleError("last slab must be unbounded, got upper bound %s", *s.UpTo)
			}
			if !s.UpTo.GreaterThan(prevBound) {
				return SlabTable{}, taxerrors.NewMalformedScheduleError("slab %d: bound %s not above previous bound %s", i+1, *s.UpTo, prevBound)
			}
			bound := *s.UpTo
			s.UpTo = &bound
			prevBound = bound
		}

		prevRate = s.Rate
		out[i] = s
	}

	return SlabTable{slabs: out}, nil
}

// MustSlabTable is NewSlabTable for compile-time constant tables; it panics on invalid input
func MustSlabTable(slabs ...Slab) SlabTable {
	t, err := NewSlabTable(slabs)
	if err != nil {
		panic(err)
	}
	return t
}

// Slabs returns a copy of the table's slabs in ascending order
func (t SlabTable) Slabs() []Slab {
	out := make([]Slab, len(t.slabs))
	for i, s := range t.slabs {
		if s.UpTo != nil {
			bound := *s.UpTo
			s.UpTo = &bound
		}
		out[i] = s
	}
	return out
}

// Len returns the number of slabs
func (t SlabTable) Len() int {
	return len(t.slabs)
}

// IsZero reports whether the table was never built through NewSlabTable
func (t SlabTable) IsZero() bool {
	return len(t.slabs) == 0
}

// TopRate returns the rate of the unbounded slab
func (t SlabTable) TopRate() decimal.Decimal {
	if len(t.slabs) == 0 {
		return decimal.Zero
	}
	return t.slabs[len(t.slabs)-1].Rate
}

// MarshalJSON encodes the table as its slab list
func (t SlabTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.slabs)
}
