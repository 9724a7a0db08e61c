package ledger

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY HELPERS - All monetary math is decimal, rounded to currency precision
// =============================================================================

// Round2 rounds a monetary value to currency precision (2 decimal places).
// Every amount written to the ledger passes through this.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// MustDecimal parses a decimal literal, returning zero on malformed input.
// For constants and test fixtures.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Percent converts a stored percentage (e.g. 2.00) to its multiplier (0.02).
func Percent(rate decimal.Decimal) decimal.Decimal {
	return rate.Div(decimal.NewFromInt(100))
}

// Format renders an amount for display in the given ISO currency code
// (e.g. "GBP" -> "£1,234.56"). Display only; arithmetic stays decimal.
func Format(d decimal.Decimal, code string) string {
	currency := money.GetCurrency(code)
	if currency == nil {
		currency = money.GetCurrency(money.GBP)
	}
	minor := d.Shift(int32(currency.Fraction)).Round(0).IntPart()
	return money.New(minor, currency.Code).Display()
}
