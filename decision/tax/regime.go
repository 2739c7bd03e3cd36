package tax

import (
	"strings"

	taxerrors "income-tax/pkg/errors"
)

// Regime is a named tax policy variant
type Regime string

const (
	RegimeNew Regime = "new"
	RegimeOld Regime = "old"
)

// KnownRegimes lists every regime the engine understands
var KnownRegimes = []Regime{RegimeNew, RegimeOld}

// ParseRegime accepts a regime name in any case
func ParseRegime(s string) (Regime, error) {
	r := Regime(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range KnownRegimes {
		if r == known {
			return r, nil
		}
	}
	return "", taxerrors.NewUnknownRegimeError(s)
}

// Title returns the display name used in reports and forms
func (r Regime) Title() string {
	switch r {
	case RegimeNew:
		return "New"
	case RegimeOld:
		return "Old"
	default:
		return string(r)
	}
}
