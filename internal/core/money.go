// Package core provides amount parsing and formatting utilities.
//
// Amounts are unitless decimals. They are stored exactly as entered and only
// rounded to two decimal places when formatted for display.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyGlyph prefixes every formatted amount.
const CurrencyGlyph = "¥"

// ParseAmount converts user input into a non-negative decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Input that
// is empty, non-numeric or negative yields a *ParseError for the amount field.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,5")  -> 12.5, nil
//	ParseAmount("-1")    -> 0, *ParseError
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, &ParseError{Field: "amount", Value: raw, Err: ErrInvalidAmount}
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "eE") {
		// scientific notation is not something a form produces
		return decimal.Zero, &ParseError{Field: "amount", Value: raw, Err: ErrInvalidAmount}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ParseError{Field: "amount", Value: raw, Err: err}
	}
	if d.IsNegative() {
		return decimal.Zero, &ParseError{Field: "amount", Value: raw, Err: ErrInvalidAmount}
	}
	return d, nil
}

// FormatMoney renders an amount as the currency glyph followed by the value
// fixed to two decimals, e.g. "¥12.30" or "¥-4.00".
func FormatMoney(d decimal.Decimal) string {
	return CurrencyGlyph + d.StringFixed(2)
}
