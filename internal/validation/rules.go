package validation

import (
	"strings"
	"unicode"
)

// Trimmed coerces to a string without surrounding whitespace and control
// characters.
func Trimmed(raw string) (any, error) {
	return sanitize(raw), nil
}

// Required fails on an empty string.
func Required(msg string) Check {
	return Check{Message: msg, Valid: func(v any) bool {
		s, ok := v.(string)
		return ok && s != ""
	}}
}

// OneOf fails unless the string value is one of allowed.
func OneOf(msg string, allowed ...string) Check {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return Check{Message: msg, Valid: func(v any) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		_, in := set[s]
		return in
	}}
}

// GreaterThan fails unless the int64 value is strictly greater than min.
func GreaterThan(min int64, msg string) Check {
	return Check{Message: msg, Valid: func(v any) bool {
		n, ok := v.(int64)
		return ok && n > min
	}}
}

// MinLength fails when the string value has fewer than n runes.
func MinLength(n int, msg string) Check {
	return Check{Message: msg, Valid: func(v any) bool {
		s, ok := v.(string)
		return ok && len([]rune(s)) >= n
	}}
}

// Contains fails unless the string value contains sub.
func Contains(sub, msg string) Check {
	return Check{Message: msg, Valid: func(v any) bool {
		s, ok := v.(string)
		return ok && strings.Contains(s, sub)
	}}
}

// sanitize trims whitespace and drops control characters other than tab,
// newline and carriage return.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
