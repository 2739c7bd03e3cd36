package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	taxerrors "income-tax/pkg/errors"
)

// moneyPlaces is the currency's minimum unit (paise)
const moneyPlaces = 2

var one = decimal.NewFromInt(1)

// TaxInput contains the inputs for one computation
type TaxInput struct {
	Income             decimal.Decimal `json:"income"`
	Salaried           bool            `json:"salaried"`
	Regime             Regime          `json:"regime"`
	UseAlternateSlabs  bool            `json:"use_alternate_slabs"`
	ItemizedDeductions decimal.Decimal `json:"itemized_deductions"`
}

// Validate rejects inputs that break the caller contract
func (in TaxInput) Validate() error {
	if in.Income.IsNegative() {
		return taxerrors.NewInvalidInputError("income", "must not be negative, got %s", in.Income)
	}
	if in.ItemizedDeductions.IsNegative() {
		return taxerrors.NewInvalidInputError("itemized_deductions", "must not be negative, got %s", in.ItemizedDeductions)
	}
	return nil
}

// BreakdownLine records the tax contributed by one income range
type BreakdownLine struct {
	From decimal.Decimal `json:"from"`
	To   decimal.Decimal `json:"to"`
	Rate decimal.Decimal `json:"rate"`
	Tax  decimal.Decimal `json:"tax"`
	Note string          `json:"note,omitempty"`
}

// TaxResult is the computation output
type TaxResult struct {
	Regime   Regime `json:"regime"`
	Revision string `json:"revision"`

	// Income and the deductions actually absorbed by it
	GrossIncome       decimal.Decimal `json:"gross_income"`
	StandardDeduction decimal.Decimal `json:"standard_deduction"`
	ItemizedDeduction decimal.Decimal `json:"itemized_deduction"`
	TaxableIncome     decimal.Decimal `json:"taxable_income"`

	TotalTax      decimal.Decimal `json:"total_tax"`
	Breakdown     []BreakdownLine `json:"breakdown"`
	RebateApplied bool            `json:"rebate_applied"`

	EffectiveRate decimal.Decimal `json:"effective_rate"`
	MarginalRate  decimal.Decimal `json:"marginal_rate"`

	Notes []string `json:"notes,omitempty"`
}

// TotalDeduction returns the standard plus itemized deduction applied
func (r *TaxResult) TotalDeduction() decimal.Decimal {
	return r.StandardDeduction.Add(r.ItemizedDeduction)
}

// Calculator computes tax against a schedule registry
type Calculator struct {
	registry *Registry
}

// NewCalculator creates a calculator; a nil registry means the built-in schedules
func NewCalculator(registry *Registry) *Calculator {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Calculator{registry: registry}
}

// Registry returns the schedules the calculator selects from
func (c *Calculator) Registry() *Registry {
	return c.registry
}

// Compute computes tax with the built-in schedules
func Compute(in TaxInput) (*TaxResult, error) {
	return NewCalculator(nil).Compute(in)
}

// Compute selects the schedule for the input's regime and computes its tax
func (c *Calculator) Compute(in TaxInput) (*TaxResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	sched, err := c.registry.Lookup(in.Regime, in.UseAlternateSlabs)
	if err != nil {
		return nil, err
	}

	return computeSchedule(in, sched), nil
}

// ComputeWithSchedule computes tax under an explicit schedule, ignoring the input's regime fields
func (c *Calculator) ComputeWithSchedule(in TaxInput, sched Schedule) (*TaxResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := sched.Validate(); err != nil {
		return nil, err
	}
	in.Regime = sched.Regime
	in.UseAlternateSlabs = sched.Alternate
	return computeSchedule(in, sched), nil
}

func computeSchedule(in TaxInput, sched Schedule) *TaxResult {
	result := &TaxResult{
		Regime:            sched.Regime,
		Revision:          sched.Revision,
		GrossIncome:       in.Income,
		StandardDeduction: decimal.Zero,
		ItemizedDeduction: decimal.Zero,
		TotalTax:          decimal.Zero,
		EffectiveRate:     decimal.Zero,
		MarginalRate:      decimal.Zero,
	}

	if in.UseAlternateSlabs && !sched.Alternate {
		result.Notes = append(result.Notes,
			fmt.Sprintf("%s regime has no alternate slab revision; used %s", sched.Regime.Title(), sched.Revision))
	}

	taxable := in.Income
	if in.Salaried {
		result.StandardDeduction = decimal.Min(sched.StandardDeduction, taxable)
		taxable = taxable.Sub(result.StandardDeduction)
	}
	if in.ItemizedDeductions.IsPositive() {
		if sched.ItemizedDeductions {
			result.ItemizedDeduction = decimal.Min(in.ItemizedDeductions, taxable)
			taxable = taxable.Sub(result.ItemizedDeduction)
		} else {
			result.Notes = append(result.Notes,
				fmt.Sprintf("itemized deductions are not allowed under the %s regime and were ignored", sched.Regime.Title()))
		}
	}
	result.TaxableIncome = taxable

	// At or below the rebate threshold: zero tax, no walk
	if sched.RebateThreshold != nil && taxable.LessThanOrEqual(*sched.RebateThreshold) {
		result.RebateApplied = true
		result.Breakdown = []BreakdownLine{{
			From: one,
			To:   taxable,
			Rate: decimal.Zero,
			Tax:  decimal.Zero,
			Note: fmt.Sprintf("No tax applicable: taxable income within the rebate limit of %s", FormatAmount(*sched.RebateThreshold)),
		}}
		return result
	}

	result.Breakdown = walkSlabs(taxable, sched.Table)
	for _, line := range result.Breakdown {
		result.TotalTax = result.TotalTax.Add(line.Tax)
	}
	result.MarginalRate = result.Breakdown[len(result.Breakdown)-1].Rate
	if in.Income.IsPositive() {
		result.EffectiveRate = result.TotalTax.Div(in.Income).Round(6)
	}

	return result
}

// walkSlabs taxes each full bracket below taxable, then the partial final bracket.
// The last slab is unbounded, so the loop always ends in the final-bracket branch.
func walkSlabs(taxable decimal.Decimal, table SlabTable) []BreakdownLine {
	lines := make([]BreakdownLine, 0, table.Len())
	previous := decimal.Zero

	for _, slab := range table.slabs {
		if slab.UpTo != nil && taxable.GreaterThan(*slab.UpTo) {
			lines = append(lines, bracketLine(previous, *slab.UpTo, slab.Rate))
			previous = *slab.UpTo
			continue
		}

		lines = append(lines, bracketLine(previous, taxable, slab.Rate))
		break
	}

	return lines
}

func bracketLine(previous, upTo, rate decimal.Decimal) BreakdownLine {
	return BreakdownLine{
		From: previous.Add(one),
		To:   upTo,
		Rate: rate,
		Tax:  upTo.Sub(previous).Mul(rate).Round(moneyPlaces),
	}
}
