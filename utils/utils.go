// Package utils provides utility functions for the application.
package utils

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

func ToPtr[T any](v T) *T {
	return &v
}

// ParseUUID parses a UUID string and wraps the error with the offending input
func ParseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid uuid %q: %w", s, err)
	}
	return id, nil
}

// MaskName keeps the first letter of each word and hides the rest,
// e.g. "Nur Aisyah" becomes "N** A*****".
func MaskName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		rest := utf8.RuneCountInString(w[size:])
		words[i] = string(r) + strings.Repeat("*", rest)
	}
	return strings.Join(words, " ")
}

// NormalizeTrackingNumber trims and upper-cases a tracking number
func NormalizeTrackingNumber(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Truncate shortens s to at most max runes, appending an ellipsis when cut
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}
