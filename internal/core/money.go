// Package core provides the invoicing domain types and money handling.
//
// Amounts are accepted in major units (dollars) and stored in minor units
// (cents). The conversion factor is fixed at 100.
package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// CentsPerUnit is the fixed major-to-minor conversion factor.
const CentsPerUnit = 100

// MaxAmountCents is the largest amount the invoices.amount INT column holds.
const MaxAmountCents int64 = math.MaxInt32

var (
	// ErrNotANumber is returned when a decimal string cannot be coerced.
	ErrNotANumber = errors.New("not a number")
	// ErrAmountTooLarge is returned when the magnitude exceeds MaxAmountCents.
	ErrAmountTooLarge = errors.New("amount too large")
)

// ParseDecimalToCents converts a decimal string in major units to cents.
//
// Digits past the second decimal place are truncated, never rounded. An
// empty string coerces to zero. A leading sign is accepted so that callers
// can report non-positive amounts as a range violation rather than a
// format error. Amounts whose magnitude exceeds MaxAmountCents fail with
// ErrAmountTooLarge.
//
//	ParseDecimalToCents("45.50")  -> 4550, nil
//	ParseDecimalToCents("19.999") -> 1999, nil
//	ParseDecimalToCents("-5")     -> -500, nil
//	ParseDecimalToCents("abc")    -> 0, ErrNotANumber
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrNotANumber
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return 0, ErrNotANumber
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return 0, ErrNotANumber
		}
	}
	intPart = strings.TrimLeft(intPart, "0")
	if len(intPart) > 10 {
		return 0, ErrAmountTooLarge
	}
	var iv int64
	if intPart != "" {
		v, err := strconv.ParseInt(intPart, 10, 64)
		if err != nil {
			return 0, ErrNotANumber
		}
		iv = v
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
		}
	}
	cents := iv*CentsPerUnit + fracCents
	if cents > MaxAmountCents {
		return 0, ErrAmountTooLarge
	}
	if neg {
		cents = -cents
	}
	return cents, nil
}

// MajorString renders the amount as a plain decimal, e.g. "45.50".
func (m Money) MajorString() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	rem := cents % CentsPerUnit
	out := sign + strconv.FormatInt(cents/CentsPerUnit, 10) + "."
	if rem < 10 {
		out += "0"
	}
	return out + strconv.FormatInt(rem, 10)
}

// FormatCurrency renders the amount in US dollars with thousands grouping,
// e.g. "$1,234.50".
func (m Money) FormatCurrency() string {
	s := m.MajorString()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	dot := strings.IndexByte(s, '.')
	whole, frac := s[:dot], s[dot:]
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + frac
}
