package input

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"income-tax/decision/tax"
)

// DefaultPromptIncome is offered when the user just presses enter
var DefaultPromptIncome = decimal.NewFromInt(800000)

// PromptSource asks for each field on a terminal. Only questions that matter for
// the chosen regime are asked, and invalid answers are asked again.
type PromptSource struct {
	In       io.Reader
	Out      io.Writer
	Registry *tax.Registry
	Symbol   string
}

// ReadInput runs the prompt. It returns io.ErrUnexpectedEOF when input ends mid-form.
func (p PromptSource) ReadInput(ctx context.Context) (tax.TaxInput, error) {
	registry := p.Registry
	if registry == nil {
		registry = tax.DefaultRegistry()
	}
	symbol := p.Symbol
	if symbol == "" {
		symbol = tax.DefaultCurrencySymbol
	}
	f := &form{scanner: bufio.NewScanner(p.In), out: p.Out, ctx: ctx}

	income, err := f.amount(fmt.Sprintf("Annual income (in %s) [%s]: ", symbol, tax.FormatQuantity(DefaultPromptIncome)), DefaultPromptIncome)
	if err != nil {
		return tax.TaxInput{}, err
	}

	regime, err := f.regime(registry.Regimes())
	if err != nil {
		return tax.TaxInput{}, err
	}

	sched, err := registry.Lookup(regime, false)
	if err != nil {
		return tax.TaxInput{}, err
	}

	in := tax.TaxInput{Income: income, Regime: regime}

	in.Salaried, err = f.yesNo(fmt.Sprintf("Salaried individual? (standard deduction %s%s) [y/N]: ",
		symbol, tax.FormatQuantity(sched.StandardDeduction)))
	if err != nil {
		return tax.TaxInput{}, err
	}

	if registry.HasAlternate(regime) {
		alt, _ := registry.Lookup(regime, true)
		in.UseAlternateSlabs, err = f.yesNo(fmt.Sprintf("Use the %s slabs? [y/N]: ", alt.Revision))
		if err != nil {
			return tax.TaxInput{}, err
		}
	}

	if sched.ItemizedDeductions {
		in.ItemizedDeductions, err = f.amount(fmt.Sprintf("Itemized deductions (in %s) [0]: ", symbol), decimal.Zero)
		if err != nil {
			return tax.TaxInput{}, err
		}
	}

	return in, in.Validate()
}

type form struct {
	scanner *bufio.Scanner
	out     io.Writer
	ctx     context.Context
}

func (f *form) ask(question string) (string, error) {
	if err := f.ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(f.out, question)
	if !f.scanner.Scan() {
		if err := f.scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read answer: %w", err)
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(f.scanner.Text()), nil
}

func (f *form) amount(question string, def decimal.Decimal) (decimal.Decimal, error) {
	for {
		answer, err := f.ask(question)
		if err != nil {
			return decimal.Zero, err
		}
		if answer == "" {
			return def, nil
		}
		v, err := ParseAmount(answer)
		if err != nil || v.IsNegative() {
			fmt.Fprintln(f.out, "  Please enter a non-negative amount.")
			continue
		}
		return v, nil
	}
}

func (f *form) regime(options []tax.Regime) (tax.Regime, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("no regimes configured")
	}
	names := make([]string, len(options))
	for i, r := range options {
		names[i] = r.Title()
	}
	question := fmt.Sprintf("Tax regime (%s) [%s]: ", strings.Join(names, "/"), names[0])

	for {
		answer, err := f.ask(question)
		if err != nil {
			return "", err
		}
		if answer == "" {
			return options[0], nil
		}
		r, err := tax.ParseRegime(answer)
		if err == nil {
			for _, o := range options {
				if o == r {
					return r, nil
				}
			}
		}
		fmt.Fprintf(f.out, "  Please choose one of: %s.\n", strings.Join(names, ", "))
	}
}

func (f *form) yesNo(question string) (bool, error) {
	for {
		answer, err := f.ask(question)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "", "n", "no":
			return false, nil
		case "y", "yes":
			return true, nil
		}
		fmt.Fprintln(f.out, "  Please answer y or n.")
	}
}
