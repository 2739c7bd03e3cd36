// Package compare runs one input under every configured regime and recommends the cheapest
package compare

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"income-tax/decision/tax"
)

// Option is the outcome under one schedule
type Option struct {
	Regime    tax.Regime     `json:"regime"`
	Revision  string         `json:"revision"`
	Alternate bool           `json:"alternate"`
	Result    *tax.TaxResult `json:"result"`
}

// Label names the option for display, e.g. "New (budget-2025)"
func (o Option) Label() string {
	return fmt.Sprintf("%s (%s)", o.Regime.Title(), o.Revision)
}

// Comparison holds every option ordered by total tax
type Comparison struct {
	Requested   Option          `json:"requested"`
	Options     []Option        `json:"options"`
	Recommended Option          `json:"recommended"`
	Savings     decimal.Decimal `json:"savings"`
}

// Compare computes the input under each regime's default revision, plus the
// alternate revisions when the input asks for them
func Compare(calc *tax.Calculator, in tax.TaxInput) (*Comparison, error) {
	requested, err := calc.Compute(in)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{
		Requested: Option{
			Regime:    requested.Regime,
			Revision:  requested.Revision,
			Alternate: in.UseAlternateSlabs && calc.Registry().HasAlternate(requested.Regime),
			Result:    requested,
		},
	}

	for _, sched := range calc.Registry().Schedules() {
		if sched.Alternate && !in.UseAlternateSlabs {
			continue
		}
		result, err := calc.ComputeWithSchedule(in, sched)
		if err != nil {
			return nil, fmt.Errorf("failed to compute %s regime %s: %w", sched.Regime, sched.Revision, err)
		}
		cmp.Options = append(cmp.Options, Option{
			Regime:    sched.Regime,
			Revision:  sched.Revision,
			Alternate: sched.Alternate,
			Result:    result,
		})
	}

	// Schedules() is already ordered by regime, so ties keep that order
	sort.SliceStable(cmp.Options, func(i, j int) bool {
		return cmp.Options[i].Result.TotalTax.LessThan(cmp.Options[j].Result.TotalTax)
	})

	cmp.Recommended = cmp.Options[0]
	cmp.Savings = decimal.Max(decimal.Zero, requested.TotalTax.Sub(cmp.Recommended.Result.TotalTax))
	return cmp, nil
}

// IsRecommended reports whether the requested schedule is already the cheapest
func (c *Comparison) IsRecommended() bool {
	return c.Savings.IsZero()
}
