package report

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"income-tax/decision/compare"
	"income-tax/decision/policy"
)

// Document is the JSON form of a report. Amounts are fixed two-decimal strings.
type Document struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`

	Input InputDocument `json:"input"`

	Regime            string         `json:"regime"`
	Revision          string         `json:"revision"`
	GrossIncome       string         `json:"gross_income"`
	StandardDeduction string         `json:"standard_deduction"`
	ItemizedDeduction string         `json:"itemized_deduction"`
	TaxableIncome     string         `json:"taxable_income"`
	TotalTax          string         `json:"total_tax"`
	EffectiveRate     string         `json:"effective_rate"`
	MarginalRate      string         `json:"marginal_rate"`
	RebateApplied     bool           `json:"rebate_applied"`
	Breakdown         []LineDocument `json:"breakdown"`
	BreakdownText     []string       `json:"breakdown_text"`
	Notes             []string       `json:"notes,omitempty"`

	Comparison *ComparisonDocument `json:"comparison,omitempty"`

	PolicyResult string             `json:"policy_result,omitempty"`
	Violations   []policy.Violation `json:"violations,omitempty"`
	Warnings     []policy.Warning   `json:"warnings,omitempty"`
}

// InputDocument echoes the input
type InputDocument struct {
	Income             string `json:"income"`
	Salaried           bool   `json:"salaried"`
	Regime             string `json:"regime"`
	UseAlternateSlabs  bool   `json:"use_alternate_slabs"`
	ItemizedDeductions string `json:"itemized_deductions"`
}

// LineDocument is one breakdown line
type LineDocument struct {
	From string `json:"from"`
	To   string `json:"to"`
	Rate string `json:"rate"`
	Tax  string `json:"tax"`
	Note string `json:"note,omitempty"`
}

// ComparisonDocument summarises a regime comparison
type ComparisonDocument struct {
	Recommended string                `json:"recommended"`
	Savings     string                `json:"savings"`
	Options     []ComparisonOptionDoc `json:"options"`
}

// ComparisonOptionDoc is one compared schedule
type ComparisonOptionDoc struct {
	Regime        string `json:"regime"`
	Revision      string `json:"revision"`
	TaxableIncome string `json:"taxable_income"`
	TotalTax      string `json:"total_tax"`
	Recommended   bool   `json:"recommended"`
}

func fixed(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// NewDocument builds the JSON form of a report
func NewDocument(r *Report, opts Options) Document {
	res := r.Result
	doc := Document{
		ID:          r.ID.String(),
		GeneratedAt: r.GeneratedAt,
		Input: InputDocument{
			Income:             fixed(r.Input.Income),
			Salaried:           r.Input.Salaried,
			Regime:             string(r.Input.Regime),
			UseAlternateSlabs:  r.Input.UseAlternateSlabs,
			ItemizedDeductions: fixed(r.Input.ItemizedDeductions),
		},
		Regime:            string(res.Regime),
		Revision:          res.Revision,
		GrossIncome:       fixed(res.GrossIncome),
		StandardDeduction: fixed(res.StandardDeduction),
		ItemizedDeduction: fixed(res.ItemizedDeduction),
		TaxableIncome:     fixed(res.TaxableIncome),
		TotalTax:          fixed(res.TotalTax),
		EffectiveRate:     res.EffectiveRate.String(),
		MarginalRate:      res.MarginalRate.String(),
		RebateApplied:     res.RebateApplied,
		Breakdown:         make([]LineDocument, 0, len(res.Breakdown)),
		BreakdownText:     res.FormatBreakdown(opts.symbol()),
		Notes:             res.Notes,
	}

	for _, line := range res.Breakdown {
		doc.Breakdown = append(doc.Breakdown, LineDocument{
			From: fixed(line.From),
			To:   fixed(line.To),
			Rate: line.Rate.String(),
			Tax:  fixed(line.Tax),
			Note: line.Note,
		})
	}

	if r.Comparison != nil {
		doc.Comparison = NewComparisonDocument(r.Comparison)
	}

	if r.Policy != nil {
		doc.PolicyResult = string(r.Policy.Decision)
		doc.Violations = r.Policy.Violations
		doc.Warnings = r.Policy.Warnings
	}
	return doc
}

// NewComparisonDocument builds the JSON form of a comparison
func NewComparisonDocument(cmp *compare.Comparison) *ComparisonDocument {
	doc := &ComparisonDocument{
		Recommended: cmp.Recommended.Label(),
		Savings:     fixed(cmp.Savings),
	}
	for _, opt := range cmp.Options {
		doc.Options = append(doc.Options, ComparisonOptionDoc{
			Regime:        string(opt.Regime),
			Revision:      opt.Revision,
			TaxableIncome: fixed(opt.Result.TaxableIncome),
			TotalTax:      fixed(opt.Result.TotalTax),
			Recommended:   opt.Regime == cmp.Recommended.Regime && opt.Revision == cmp.Recommended.Revision,
		})
	}
	return doc
}

// JSONSink writes the report as indented JSON
type JSONSink struct {
	W       io.Writer
	Options Options
}

// Write renders the report
func (s *JSONSink) Write(ctx context.Context, r *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	enc := json.NewEncoder(s.W)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDocument(r, s.Options))
}

