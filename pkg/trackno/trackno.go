// Package trackno provides tracking-number normalization shared by the
// import, alignment, and versioning packages.
package trackno

import "strings"

// Normalize canonicalizes a tracking number: surrounding whitespace is
// stripped and letters are upper-cased. All keyed lookups across the
// engine use the normalized form.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Valid reports whether a normalized tracking number is usable as an
// alignment key. Carriers use alphanumerics plus a small set of
// separators; anything else is treated as malformed.
func Valid(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}
