package input

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"income-tax/decision/tax"
	taxerrors "income-tax/pkg/errors"
)

func TestJSONSource(t *testing.T) {
	tests := []struct {
		name string
		body string
		want tax.TaxInput
	}{
		{
			name: "numbers",
			body: `{"income": 900000, "salaried": true, "regime": "old", "itemized_deductions": 150000}`,
			want: tax.TaxInput{Income: decimal.NewFromInt(900000), Salaried: true, Regime: tax.RegimeOld, ItemizedDeductions: decimal.NewFromInt(150000)},
		},
		{
			name: "strings with grouping",
			body: `{"income": "1,500,000.50", "regime": "NEW", "use_alternate_slabs": true}`,
			want: tax.TaxInput{Income: decimal.RequireFromString("1500000.50"), Regime: tax.RegimeNew, UseAlternateSlabs: true},
		},
		{
			name: "regime defaults to new",
			body: `{"income": 0, "itemized_deductions": null}`,
			want: tax.TaxInput{Income: decimal.Zero, Regime: tax.RegimeNew},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JSONSource{Reader: strings.NewReader(tt.body)}.ReadInput(context.Background())
			require.NoError(t, err)
			assert.True(t, tt.want.Income.Equal(got.Income), "income %s", got.Income)
			assert.True(t, tt.want.ItemizedDeductions.Equal(got.ItemizedDeductions))
			assert.Equal(t, tt.want.Regime, got.Regime)
			assert.Equal(t, tt.want.Salaried, got.Salaried)
			assert.Equal(t, tt.want.UseAlternateSlabs, got.UseAlternateSlabs)
		})
	}
}

func TestJSONSourceErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code taxerrors.Code
	}{
		{"negative income", `{"income": -1}`, taxerrors.CodeInvalidInput},
		{"negative itemized", `{"income": 10, "regime": "old", "itemized_deductions": "-10"}`, taxerrors.CodeInvalidInput},
		{"not a number", `{"income": "lots"}`, taxerrors.CodeInvalidInput},
		{"unknown field", `{"income": 1, "age": 40}`, taxerrors.CodeInvalidInput},
		{"malformed json", `{"income": `, taxerrors.CodeInvalidInput},
		{"unknown regime", `{"income": 1, "regime": "flat"}`, taxerrors.CodeUnknownRegime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := JSONSource{Reader: strings.NewReader(tt.body)}.ReadInput(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, taxerrors.ErrInvalidInput)
			assert.Equal(t, tt.code, taxerrors.CodeOf(err))
		})
	}
}

func TestStatic(t *testing.T) {
	in := tax.TaxInput{Income: decimal.NewFromInt(5), Regime: tax.RegimeNew}
	got, err := Static(in).ReadInput(context.Background())
	require.NoError(t, err)
	assert.Equal(t, in, got)

	_, err = Static(tax.TaxInput{Income: decimal.NewFromInt(-5)}).ReadInput(context.Background())
	assert.ErrorIs(t, err, taxerrors.ErrInvalidInput)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"800000", "800000"},
		{"8,00,000", "800000"},
		{"1_000", "1000"},
		{" 12.5 ", "12.5"},
		{"", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	_, err := ParseAmount("12abc")
	assert.Equal(t, taxerrors.CodeInvalidInput, taxerrors.CodeOf(err))
}
