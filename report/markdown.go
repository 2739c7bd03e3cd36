package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"income-tax/decision/tax"
)

// MarkdownSink renders the report as a markdown document
type MarkdownSink struct {
	W       io.Writer
	Options Options
}

// Write renders the report
func (s *MarkdownSink) Write(ctx context.Context, r *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res := r.Result
	w := &errWriter{w: s.W}

	w.printf("## Income Tax Report\n\n")
	w.printf("| Field | Value |\n")
	w.printf("|-------|-------|\n")
	w.printf("| **Regime** | %s (%s) |\n", res.Regime.Title(), res.Revision)
	w.printf("| **Gross Income** | %s |\n", s.Options.amount(res.GrossIncome))
	w.printf("| **Salaried** | %s |\n", yesNo(r.Input.Salaried))
	w.printf("| **Deductions Applied** | %s |\n", s.Options.amount(res.TotalDeduction()))
	w.printf("| **Taxable Income** | %s |\n", s.Options.amount(res.TaxableIncome))
	w.printf("| **Total Tax Payable** | %s |\n", s.Options.amount(res.TotalTax))
	w.printf("| **Effective Rate** | %s |\n", tax.FormatRate(res.EffectiveRate.Round(4)))
	if r.Policy != nil {
		w.printf("| **Policy Result** | %s |\n", r.Policy.Decision)
	}

	w.printf("\n### Tax Slab Breakdown\n\n")
	for _, line := range res.FormatBreakdown(s.Options.symbol()) {
		w.printf("- %s\n", line)
	}

	if len(res.Notes) > 0 {
		w.printf("\n### Notes\n\n")
		for _, note := range res.Notes {
			w.printf("- %s\n", note)
		}
	}

	if cmp := r.Comparison; cmp != nil {
		w.printf("\n### Regime Comparison\n\n")
		w.printf("| Regime | Taxable Income | Total Tax |\n")
		w.printf("|--------|----------------|-----------|\n")
		for _, opt := range cmp.Options {
			label := opt.Label()
			if opt.Regime == cmp.Recommended.Regime && opt.Revision == cmp.Recommended.Revision {
				label = "**" + label + "** (recommended)"
			}
			w.printf("| %s | %s | %s |\n", label, s.Options.amount(opt.Result.TaxableIncome), s.Options.amount(opt.Result.TotalTax))
		}
	}

	if r.Policy != nil && len(r.Policy.Violations) > 0 {
		w.printf("\n### Policy Violations\n\n")
		for _, v := range r.Policy.Violations {
			w.printf("- **%s**: %s\n", v.PolicyName, v.Message)
		}
	}
	if r.Policy != nil && len(r.Policy.Warnings) > 0 {
		w.printf("\n### Warnings\n\n")
		for _, warn := range r.Policy.Warnings {
			w.printf("- %s\n", warn.Message)
		}
	}

	w.printf("\n_Report %s generated %s_\n", r.ID, r.GeneratedAt.Format(time.RFC3339))
	return w.err
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
