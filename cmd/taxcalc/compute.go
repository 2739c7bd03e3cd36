package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"income-tax/decision/compare"
	"income-tax/decision/policy"
	"income-tax/decision/tax"
	"income-tax/input"
	"income-tax/report"
)

// errDenied makes the process exit with code 2 when a policy denies the result
var errDenied = cli.Exit("tax check denied the result", 2)

func inputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "income",
			Aliases: []string{"i"},
			Usage:   "Annual gross income, e.g. 1200000 or 12,00,000",
		},
		&cli.BoolFlag{
			Name:  "salaried",
			Usage: "Apply the regime's standard deduction",
		},
		&cli.StringFlag{
			Name:    "regime",
			Aliases: []string{"r"},
			Value:   string(tax.RegimeNew),
			Usage:   "Tax regime (new, old)",
		},
		&cli.BoolFlag{
			Name:  "budget-2025",
			Usage: "Use the regime's alternate slab revision when it has one",
		},
		&cli.StringFlag{
			Name:  "itemized",
			Usage: "Itemized deductions (old regime only)",
		},
		&cli.BoolFlag{
			Name:  "interactive",
			Usage: "Ask for each field on the terminal",
		},
		&cli.StringFlag{
			Name:  "input",
			Usage: "Read a JSON request from a file ('-' for stdin)",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Value:   string(report.FormatTable),
			Usage:   "Output format (table, json, markdown, csv)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Also write the report to a file; the extension picks the format",
		},
		&cli.StringFlag{
			Name:  "currency-code",
			Usage: "Print amounts with a currency code instead of the rupee sign, e.g. INR",
		},
	}
}

// =============================================================================
// COMPUTE COMMAND
// =============================================================================

func computeCommand() *cli.Command {
	flags := append(inputFlags(),
		&cli.Float64Flag{
			Name:  "max-tax",
			Usage: "Deny when total tax exceeds this amount",
		},
		&cli.Float64Flag{
			Name:  "max-effective-rate",
			Usage: "Deny when the effective rate exceeds this percentage",
		},
		&cli.StringSliceFlag{
			Name:  "policy-expr",
			Usage: "CEL expression over result.* that denies when true (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "skip-policy",
			Usage: "Skip tax checks",
		},
	)

	return &cli.Command{
		Name:   "compute",
		Usage:  "Compute income tax with a slab breakdown",
		Flags:  flags,
		Action: runCompute,
	}
}

func runCompute(c *cli.Context) error {
	ctx := c.Context

	registry, store, err := loadRegistry(c)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	calc := tax.NewCalculator(registry)

	in, err := readInput(c, registry)
	if err != nil {
		return err
	}

	result, err := calc.Compute(in)
	if err != nil {
		return err
	}
	log.Debug().Str("regime", string(result.Regime)).Str("revision", result.Revision).Str("total", result.TotalTax.StringFixed(2)).Msg("Computed tax")

	cmp, err := compare.Compare(calc, in)
	if err != nil {
		return fmt.Errorf("failed to compare regimes: %w", err)
	}

	rep := report.New(in, result)

	if !c.Bool("skip-policy") {
		engine, err := policy.NewEngine()
		if err != nil {
			return fmt.Errorf("failed to create policy engine: %w", err)
		}
		if err := addFlagPolicies(c, engine); err != nil {
			return err
		}

		eval, err := engine.Evaluate(ctx, policy.EvaluationRequest{Result: result, Comparison: cmp})
		if err != nil {
			return fmt.Errorf("policy evaluation failed: %w", err)
		}
		rep.WithPolicy(eval)
	}

	if err := writeReport(c, rep); err != nil {
		return err
	}

	if rep.Policy != nil && rep.Policy.Decision == policy.DecisionDeny {
		return errDenied
	}
	return nil
}

func addFlagPolicies(c *cli.Context, engine *policy.Engine) error {
	if limit := c.Float64("max-tax"); limit > 0 {
		if err := engine.AddPolicy(policy.Policy{
			ID:        "cli-max-tax",
			Name:      "Tax Limit",
			Type:      policy.PolicyTypeTaxLimit,
			Severity:  policy.SeverityError,
			Threshold: limit,
			Enabled:   true,
		}); err != nil {
			return err
		}
	}

	if limit := c.Float64("max-effective-rate"); limit > 0 {
		if err := engine.AddPolicy(policy.Policy{
			ID:        "cli-max-effective-rate",
			Name:      "Effective Rate Limit",
			Type:      policy.PolicyTypeEffectiveRate,
			Severity:  policy.SeverityError,
			Threshold: limit,
			Enabled:   true,
		}); err != nil {
			return err
		}
	}

	for i, expr := range c.StringSlice("policy-expr") {
		if err := engine.AddPolicy(policy.Policy{
			ID:         fmt.Sprintf("cli-expr-%d", i+1),
			Name:       "Custom Check",
			Type:       policy.PolicyTypeCustom,
			Severity:   policy.SeverityError,
			Expression: expr,
			Enabled:    true,
		}); err != nil {
			return fmt.Errorf("invalid --policy-expr %q: %w", expr, err)
		}
	}
	return nil
}

// =============================================================================
// COMPARE COMMAND
// =============================================================================

func compareCommand() *cli.Command {
	return &cli.Command{
		Name:   "compare",
		Usage:  "Compare the tax due under every regime",
		Flags:  inputFlags(),
		Action: runCompare,
	}
}

func runCompare(c *cli.Context) error {
	registry, store, err := loadRegistry(c)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	calc := tax.NewCalculator(registry)

	in, err := readInput(c, registry)
	if err != nil {
		return err
	}

	cmp, err := compare.Compare(calc, in)
	if err != nil {
		return err
	}

	rep := report.New(in, cmp.Requested.Result).WithComparison(cmp)
	return writeReport(c, rep)
}

// =============================================================================
// INPUT AND OUTPUT
// =============================================================================

func readInput(c *cli.Context, registry *tax.Registry) (tax.TaxInput, error) {
	var src input.TaxInputSource

	switch {
	case c.Bool("interactive"):
		src = input.PromptSource{
			In:       c.App.Reader,
			Out:      c.App.ErrWriter,
			Registry: registry,
			Symbol:   reportOptions(c).CurrencySymbol,
		}
	case c.String("input") != "":
		r, closeFn, err := openInput(c)
		if err != nil {
			return tax.TaxInput{}, err
		}
		defer closeFn()
		src = input.JSONSource{Reader: r}
	default:
		if !c.IsSet("income") {
			return tax.TaxInput{}, fmt.Errorf("--income is required unless --interactive or --input is set")
		}
		static, err := flagInput(c)
		if err != nil {
			return tax.TaxInput{}, err
		}
		src = static
	}

	return src.ReadInput(c.Context)
}

func openInput(c *cli.Context) (io.Reader, func() error, error) {
	path := c.String("input")
	if path == "-" {
		return c.App.Reader, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, f.Close, nil
}

func flagInput(c *cli.Context) (input.Static, error) {
	income, err := input.ParseAmount(c.String("income"))
	if err != nil {
		return input.Static{}, err
	}
	itemized, err := input.ParseAmount(c.String("itemized"))
	if err != nil {
		return input.Static{}, err
	}
	regime, err := tax.ParseRegime(c.String("regime"))
	if err != nil {
		return input.Static{}, err
	}

	return input.Static{
		Income:             income,
		Salaried:           c.Bool("salaried"),
		Regime:             regime,
		UseAlternateSlabs:  c.Bool("budget-2025"),
		ItemizedDeductions: itemized,
	}, nil
}

func reportOptions(c *cli.Context) report.Options {
	opts := report.Options{}
	if code := strings.TrimSpace(c.String("currency-code")); code != "" {
		opts.CurrencySymbol = strings.ToUpper(code) + " "
	}
	return opts
}

func writeReport(c *cli.Context, rep *report.Report) error {
	format, err := report.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}
	opts := reportOptions(c)

	sink, err := report.NewSink(format, c.App.Writer, opts)
	if err != nil {
		return err
	}
	if err := sink.Write(c.Context, rep); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if path := c.String("output"); path != "" {
		if err := report.Export(c.Context, path, report.FormatForPath(path, format), opts, rep); err != nil {
			return err
		}
		log.Info().Str("path", path).Str("report", rep.ID.String()).Msg("Report written")
	}
	return nil
}
