// Package slug turns free text into filesystem-safe snake_case identifiers.
package slug

import (
	"strings"
	"unicode"
)

// Make lowercases s and collapses every run of characters outside [a-z0-9]
// into a single underscore. The result is cut to maxLen bytes when maxLen > 0
// and never starts or ends with an underscore.
func Make(s string, maxLen int) string {
	out := strings.Join(words(s), "_")
	return out[:cut(out, maxLen)]
}

// Words builds a snake_case identifier from at most maxWords words of s.
// Returns "" if s contains no letters or digits.
func Words(s string, maxWords int) string {
	w := words(s)
	if maxWords > 0 && len(w) > maxWords {
		w = w[:maxWords]
	}
	return strings.Join(w, "_")
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})
}

func cut(s string, maxLen int) int {
	if maxLen <= 0 || len(s) <= maxLen {
		return len(s)
	}
	n := maxLen
	for n > 0 && s[n-1] == '_' {
		n--
	}
	return n
}
