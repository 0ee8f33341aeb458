// Package core provides amount parsing and formatting utilities.
//
// This file contains functions for parsing monetary amounts from the
// strings found in uploaded files and in model replies.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the number of decimal places used when rounding amounts.
const AmountPlaces = 2

// Bounds on accepted amounts. Larger exponents would make rescaling and
// formatting build numbers with billions of digits.
const (
	MaxAmountExponent = 30
	MaxAmountDigits   = 30
)

// CheckAmount rejects amounts outside the representable range with
// ErrNonNumeric.
func CheckAmount(d decimal.Decimal) error {
	if exp := d.Exponent(); exp > MaxAmountExponent || exp < -MaxAmountExponent {
		return fmt.Errorf("%w: exponent %d out of range", ErrNonNumeric, exp)
	}
	if n := d.NumDigits(); n > MaxAmountDigits {
		return fmt.Errorf("%w: %d digits", ErrNonNumeric, n)
	}
	return nil
}

// ParseAmount converts a numeric string to a decimal amount.
//
// Leading and trailing whitespace is ignored, a leading sign is allowed and
// exponents are accepted ("1e3"). A single decimal comma followed by one or
// two digits is accepted when the string has no dot ("12,34"). NaN,
// infinities, thousands separators, amounts rejected by CheckAmount and any
// other text return ErrNonNumeric.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-5")    -> -5, nil
//	ParseAmount("1,200.50") -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrNonNumeric
	}
	// Normalize decimal comma to dot; "1,200" stays ambiguous and is rejected
	if i := strings.IndexByte(s, ','); i >= 0 && !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		if frac := len(s) - i - 1; frac >= 1 && frac <= 2 {
			s = s[:i] + "." + s[i+1:]
		}
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.', r == '-', r == '+', r == 'e', r == 'E':
		default:
			return decimal.Zero, ErrNonNumeric
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrNonNumeric
	}
	if err := CheckAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// RoundAmount rounds half away from zero to AmountPlaces.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPlaces)
}

// FormatAmount renders an amount without trailing zeros ("860", "12.5").
func FormatAmount(d decimal.Decimal) string {
	return d.String()
}

// FormatEuros formats an amount as a Euro currency string (e.g., "€12,34").
func FormatEuros(d decimal.Decimal) string {
	s := d.Abs().StringFixed(AmountPlaces)
	s = strings.Replace(s, ".", ",", 1)
	if d.IsNegative() {
		return "-€" + s
	}
	return "€" + s
}
