// Package core holds the budget and learning domain.
//
// This file contains helpers for exact monetary amounts. Amounts are
// shopspring decimals and are serialised as plain JSON numbers.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// ParseAmount parses a decimal string, accepting both dot (12.34) and comma
// (12,34) separators. Negative values are rejected.
//
// Accepted and rejected inputs:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,5")  -> 12.5, nil
//	ParseAmount("-1")    -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, Validationf("amount is required")
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, Validationf("invalid amount %q", s)
	}
	if d.IsNegative() {
		return decimal.Zero, Validationf("amount must not be negative")
	}
	return d, nil
}

// requireNonNegative reports a validation error naming field when d < 0.
func requireNonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return Validationf("%s must not be negative", field)
	}
	return nil
}

// FormatAmount renders an amount with two decimals, e.g. "880.00".
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
