package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"income-tax/decision/policy"
	"income-tax/decision/tax"
)

const (
	boxWidth   = 62
	fieldWidth = 24
)

// TableSink renders a boxed text report for terminals
type TableSink struct {
	W       io.Writer
	Options Options
}

// Write renders the report
func (s *TableSink) Write(ctx context.Context, r *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res := r.Result
	b := &box{w: s.W}

	b.rule("╔", "╗")
	b.text("                       INCOME TAX REPORT")
	b.rule("╠", "╣")
	b.field("Regime:", fmt.Sprintf("%s (%s)", res.Regime.Title(), res.Revision))
	b.field("Gross Income:", s.Options.amount(res.GrossIncome))
	b.field("Standard Deduction:", s.Options.amount(res.StandardDeduction))
	if !res.ItemizedDeduction.IsZero() {
		b.field("Itemized Deduction:", s.Options.amount(res.ItemizedDeduction))
	}
	b.field("Taxable Income:", s.Options.amount(res.TaxableIncome))
	b.field("Total Tax Payable:", s.Options.amount(res.TotalTax))
	b.field("Effective Rate:", tax.FormatRate(res.EffectiveRate.Round(4)))
	if !res.RebateApplied {
		b.field("Marginal Rate:", tax.FormatRate(res.MarginalRate))
	}
	b.rule("╠", "╣")

	b.text("SLAB BREAKDOWN")
	b.rule("╠", "╣")
	for _, line := range res.FormatBreakdown(s.Options.symbol()) {
		b.wrapped(line)
	}
	for _, note := range res.Notes {
		b.wrapped("Note: " + note)
	}

	if cmp := r.Comparison; cmp != nil {
		b.rule("╠", "╣")
		b.text("REGIME COMPARISON")
		b.rule("╠", "╣")
		for _, opt := range cmp.Options {
			label := opt.Label()
			if opt.Regime == cmp.Recommended.Regime && opt.Revision == cmp.Recommended.Revision {
				label += " *"
			}
			b.field(label, s.Options.amount(opt.Result.TotalTax))
		}
		if cmp.Savings.IsPositive() {
			b.wrapped(fmt.Sprintf("Switching to %s saves %s", cmp.Recommended.Label(), s.Options.amount(cmp.Savings)))
		}
	}

	if eval := r.Policy; eval != nil {
		b.rule("╠", "╣")
		b.field("Policy Result:", decisionLabel(eval.Decision))
		for _, v := range eval.Violations {
			b.text("DENY " + truncate(v.Message, boxWidth-8))
		}
		for _, w := range eval.Warnings {
			b.text("WARN " + truncate(w.Message, boxWidth-8))
		}
	}

	b.rule("╚", "╝")
	return b.err
}

func decisionLabel(d policy.Decision) string {
	switch d {
	case policy.DecisionDeny:
		return "DENY"
	case policy.DecisionWarn:
		return "WARN"
	default:
		return "PASS"
	}
}

// box writes fixed-width framed lines and keeps the first write error
type box struct {
	w   io.Writer
	err error
}

func (b *box) printf(format string, args ...any) {
	if b.err != nil {
		return
	}
	_, b.err = fmt.Fprintf(b.w, format, args...)
}

func (b *box) rule(left, right string) {
	b.printf("%s%s%s\n", left, strings.Repeat("═", boxWidth), right)
}

func (b *box) text(s string) {
	b.printf("║  %-*s║\n", boxWidth-2, truncate(s, boxWidth-3))
}

func (b *box) field(label, value string) {
	b.text(fmt.Sprintf("%-*s%s", fieldWidth, label, value))
}

func (b *box) wrapped(s string) {
	for _, line := range wrap(s, boxWidth-3) {
		b.text(line)
	}
}

// wrap breaks s on spaces into lines of at most width runes
func wrap(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len([]rune(current))+1+len([]rune(word)) > width {
			lines = append(lines, current)
			current = word
			continue
		}
		current += " " + word
	}
	return append(lines, current)
}
