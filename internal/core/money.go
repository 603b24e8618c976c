// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from user input
// into exact decimals. Amounts are never represented as floats.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// MaxAmountScale is the number of fractional digits kept for stored amounts.
const MaxAmountScale = 4

// ParseAmount converts a decimal string to a positive decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to MaxAmountScale fractional digits. Signs, exponents, NaN and
// infinities are rejected, as are zero amounts.
//
// Examples:
//
//	ParseAmount("12.34")   -> 12.34, nil
//	ParseAmount("12,34")   -> 12.34, nil
//	ParseAmount("0.00005") -> 0.0001, nil (rounds up)
//	ParseAmount("-3")      -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, Invalid("amount", ErrInvalidAmount)
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, Invalid("amount", ErrInvalidAmount)
	}
	// Only plain digits and one separator; this rules out signs, exponents, NaN, Inf.
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, Invalid("amount", ErrInvalidAmount)
		}
	}
	if s == "." {
		return decimal.Zero, Invalid("amount", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(s, "."))
	if err != nil {
		return decimal.Zero, Invalid("amount", ErrInvalidAmount)
	}
	d = d.Round(MaxAmountScale)
	if !d.IsPositive() {
		return decimal.Zero, Invalid("amount", ErrInvalidAmount)
	}
	return d, nil
}

// ValidatePositive checks that amount is usable as a transaction or funds amount.
func ValidatePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return Invalid("amount", ErrInvalidAmount)
	}
	return nil
}

// FormatAmount renders an amount with two fractional digits for display.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
