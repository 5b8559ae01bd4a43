// Package money carries monetary values as an integer count of the smallest
// currency unit (paise). Arithmetic on the ledger is therefore exact no
// matter how many times a summary is recomputed; decimals appear only at the
// API boundary, where values are parsed and rendered with two fractional
// digits using round-half-up.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value in the smallest currency unit.
type Amount int64

// Zero is the additive identity.
const Zero Amount = 0

var hundred = decimal.NewFromInt(100)

// Parse converts a decimal string ("350", "12.5", "0.005") into an Amount,
// rounding half-up to two decimal places.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// FromDecimal rounds d half-up to two decimal places and converts it to the
// smallest unit.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount(d.Round(2).Mul(hundred).IntPart())
}

// Decimal returns the value in major units as a decimal.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// String renders the value with exactly two decimal places.
func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

// MulQty multiplies a per-unit price by a whole quantity. Exact: both
// operands are integers.
func (a Amount) MulQty(qty int) Amount {
	return a * Amount(qty)
}

// IsNegative reports whether the amount is below zero.
func (a Amount) IsNegative() bool { return a < 0 }

// IsPositive reports whether the amount is above zero.
func (a Amount) IsPositive() bool { return a > 0 }

// MarshalJSON renders the amount as a JSON number with two decimal places.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*a = 0
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
