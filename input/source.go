// Package input collects tax inputs from flags, JSON documents and an interactive prompt
package input

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"income-tax/decision/tax"
	taxerrors "income-tax/pkg/errors"
)

// TaxInputSource provides the input for one computation
type TaxInputSource interface {
	ReadInput(ctx context.Context) (tax.TaxInput, error)
}

// Static is an input that was already assembled, e.g. from command-line flags
type Static tax.TaxInput

// ReadInput returns the input unchanged
func (s Static) ReadInput(ctx context.Context) (tax.TaxInput, error) {
	in := tax.TaxInput(s)
	if err := in.Validate(); err != nil {
		return tax.TaxInput{}, err
	}
	return in, nil
}

// Request is the JSON shape of a tax input, shared with the HTTP API.
// Amounts may be JSON numbers or strings.
type Request struct {
	Income             Amount `json:"income"`
	Salaried           bool   `json:"salaried"`
	Regime             string `json:"regime"`
	UseAlternateSlabs  bool   `json:"use_alternate_slabs"`
	ItemizedDeductions Amount `json:"itemized_deductions"`
}

// ToTaxInput validates the request and converts it
func (r Request) ToTaxInput() (tax.TaxInput, error) {
	regime := tax.RegimeNew
	if strings.TrimSpace(r.Regime) != "" {
		parsed, err := tax.ParseRegime(r.Regime)
		if err != nil {
			return tax.TaxInput{}, err
		}
		regime = parsed
	}

	in := tax.TaxInput{
		Income:             r.Income.Decimal,
		Salaried:           r.Salaried,
		Regime:             regime,
		UseAlternateSlabs:  r.UseAlternateSlabs,
		ItemizedDeductions: r.ItemizedDeductions.Decimal,
	}
	if err := in.Validate(); err != nil {
		return tax.TaxInput{}, err
	}
	return in, nil
}

// Amount decodes a decimal from a JSON number or string
type Amount struct {
	decimal.Decimal
}

// UnmarshalJSON accepts 800000, 800000.50, "800000" and null
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		a.Decimal = decimal.Zero
		return nil
	}
	raw := strings.Trim(string(data), `"`)
	v, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	a.Decimal = v
	return nil
}

// ParseAmount parses a user-entered amount, tolerating grouping commas and underscores
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer(",", "", "_", "", " ", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, taxerrors.NewInvalidInputError("amount", "%q is not a number", s)
	}
	return v, nil
}

// JSONSource decodes a Request document
type JSONSource struct {
	Reader io.Reader
}

// ReadInput decodes and validates the document
func (j JSONSource) ReadInput(ctx context.Context) (tax.TaxInput, error) {
	if err := ctx.Err(); err != nil {
		return tax.TaxInput{}, err
	}

	var req Request
	dec := json.NewDecoder(j.Reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if taxerrors.CodeOf(err) != "" {
			return tax.TaxInput{}, err
		}
		return tax.TaxInput{}, taxerrors.NewInvalidInputError("body", "failed to decode request: %v", err)
	}
	return req.ToTaxInput()
}

// Describe summarises an input for log lines and prompts
func Describe(in tax.TaxInput) string {
	return fmt.Sprintf("income=%s regime=%s salaried=%t alternate=%t itemized=%s",
		in.Income, in.Regime, in.Salaried, in.UseAlternateSlabs, in.ItemizedDeductions)
}
