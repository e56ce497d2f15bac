// Package money provides cent-exact currency arithmetic.
//
// Every monetary value in the system is a decimal with two fractional
// digits. All arithmetic routes through integer cents so that binary
// floating-point error can never leak into an order total or a remaining
// balance. No other package may add or subtract currency directly.
package money

import "github.com/shopspring/decimal"

// Cents converts an amount to integer cents, rounding half away from zero.
func Cents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromCents converts integer cents back to a two-digit decimal amount.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// Add returns a + b computed in cents.
func Add(a, b decimal.Decimal) decimal.Decimal {
	return FromCents(Cents(a) + Cents(b))
}

// SubtractClamped returns max(0, a-b) computed in cents. Used for
// remaining-balance math so an overpayment never drives a balance negative.
func SubtractClamped(a, b decimal.Decimal) decimal.Decimal {
	c := Cents(a) - Cents(b)
	if c < 0 {
		c = 0
	}
	return FromCents(c)
}

// Line returns quantity * unitPrice in cents.
func Line(quantity int32, unitPrice decimal.Decimal) decimal.Decimal {
	return FromCents(Cents(unitPrice) * int64(quantity))
}

// Sum accumulates amounts through Add, never through naive decimal addition
// of unrounded intermediates.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = Add(total, a)
	}
	return total
}
