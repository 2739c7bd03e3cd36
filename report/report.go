// Package report renders tax results as text tables, markdown, JSON and CSV
// and exports them to files
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"income-tax/decision/compare"
	"income-tax/decision/policy"
	"income-tax/decision/tax"
)

// Report is everything a sink renders for one computation
type Report struct {
	ID          uuid.UUID
	GeneratedAt time.Time
	Input       tax.TaxInput
	Result      *tax.TaxResult
	Comparison  *compare.Comparison
	Policy      *policy.EvaluationResult
}

// New creates a report for a computed result
func New(in tax.TaxInput, result *tax.TaxResult) *Report {
	return &Report{
		ID:          uuid.New(),
		GeneratedAt: time.Now().UTC(),
		Input:       in,
		Result:      result,
	}
}

// WithComparison attaches a regime comparison
func (r *Report) WithComparison(cmp *compare.Comparison) *Report {
	r.Comparison = cmp
	return r
}

// WithPolicy attaches a policy evaluation
func (r *Report) WithPolicy(eval *policy.EvaluationResult) *Report {
	r.Policy = eval
	return r
}

// Options controls presentation
type Options struct {
	// CurrencySymbol replaces the default rupee sign, e.g. "INR " for ASCII-only output
	CurrencySymbol string
}

func (o Options) symbol() string {
	if o.CurrencySymbol == "" {
		return tax.DefaultCurrencySymbol
	}
	return o.CurrencySymbol
}

func (o Options) amount(d decimal.Decimal) string {
	return o.symbol() + tax.FormatAmount(d)
}

// TaxReportSink consumes a report
type TaxReportSink interface {
	Write(ctx context.Context, r *Report) error
}

// Format names an output format
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
)

// Formats lists every supported format
var Formats = []Format{FormatTable, FormatJSON, FormatMarkdown, FormatCSV}

// ParseFormat accepts a format name in any case; "md" is an alias for markdown
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatMarkdown, FormatCSV:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unknown report format %q (table, json, markdown, csv)", s)
}

// FormatForPath picks the format from a file extension, falling back to def
func FormatForPath(path string, def Format) Format {
	switch {
	case strings.HasSuffix(path, ".json"):
		return FormatJSON
	case strings.HasSuffix(path, ".md"):
		return FormatMarkdown
	case strings.HasSuffix(path, ".csv"):
		return FormatCSV
	case strings.HasSuffix(path, ".txt"):
		return FormatTable
	}
	return def
}

// NewSink returns the sink for a format writing to w
func NewSink(format Format, w io.Writer, opts Options) (TaxReportSink, error) {
	switch format {
	case FormatTable, "":
		return &TableSink{W: w, Options: opts}, nil
	case FormatJSON:
		return &JSONSink{W: w, Options: opts}, nil
	case FormatMarkdown:
		return &MarkdownSink{W: w, Options: opts}, nil
	case FormatCSV:
		return &CSVSink{W: w, Options: opts}, nil
	}
	return nil, fmt.Errorf("unknown report format %q", format)
}

// Export writes the report document to path
func Export(ctx context.Context, path string, format Format, opts Options, r *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	sink, err := NewSink(format, f, opts)
	if err != nil {
		f.Close()
		return err
	}
	if err := sink.Write(ctx, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
