package tax

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// DefaultCurrencySymbol is used when a caller does not substitute its own
const DefaultCurrencySymbol = "₹"

var hundred = decimal.NewFromInt(100)

// FormatAmount renders a monetary amount with thousands grouping and two decimals
func FormatAmount(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(moneyPlaces)
	whole, frac, _ := strings.Cut(fixed, ".")
	n, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return d.StringFixed(moneyPlaces)
	}
	s := humanize.BigComma(n) + "." + frac
	if d.IsNegative() && !d.Round(moneyPlaces).IsZero() {
		s = "-" + s
	}
	return s
}

// FormatQuantity renders whole amounts without decimals and anything else like FormatAmount
func FormatQuantity(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) && !d.IsNegative() {
		return humanize.BigComma(d.BigInt())
	}
	return FormatAmount(d)
}

// FormatRate renders a fractional rate as a percentage, e.g. 0.05 -> "5%"
func FormatRate(rate decimal.Decimal) string {
	return rate.Mul(hundred).String() + "%"
}

// Format renders the line with the given currency symbol
func (l BreakdownLine) Format(symbol string) string {
	if l.Note != "" {
		return l.Note
	}
	return fmt.Sprintf("%s%s - %s%s @ %s = %s%s",
		symbol, FormatQuantity(l.From),
		symbol, FormatQuantity(l.To),
		FormatRate(l.Rate),
		symbol, FormatAmount(l.Tax),
	)
}

func (l BreakdownLine) String() string {
	return l.Format(DefaultCurrencySymbol)
}

// FormatBreakdown renders every breakdown line in order
func (r *TaxResult) FormatBreakdown(symbol string) []string {
	out := make([]string, len(r.Breakdown))
	for i, line := range r.Breakdown {
		out[i] = line.Format(symbol)
	}
	return out
}
