// Package types provides the decimal value types shared by stock and ledger code.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Quantity is a stock quantity. Fractional values are legal (weights, lengths,
// proportional allocations); persistence rounds to the configured scale.
type Quantity = decimal.Decimal

// MoneyScale is the number of fractional digits kept for posted amounts.
const MoneyScale int32 = 2

var (
	// LedgerEpsilon is the largest debit/credit difference still considered balanced.
	LedgerEpsilon = decimal.RequireFromString("0.01")

	// SyncTolerance is the smallest material/stock difference worth a delta.
	SyncTolerance = decimal.RequireFromString("0.01")
)

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// MustQuantity creates a Quantity from a string, panics on error.
// Use only for constants and tests.
func MustQuantity(s string) Quantity {
	return decimal.RequireFromString(s)
}

// Zero returns the zero decimal.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// ClampNonNegative returns v, or zero when v is negative.
func ClampNonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// WithinTolerance reports whether |a-b| <= tol.
func WithinTolerance(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}

// RoundMoney rounds half-away-from-zero to MoneyScale.
func RoundMoney(m Money) Money {
	return m.Round(MoneyScale)
}
