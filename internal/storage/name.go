package storage

import (
	"strings"
	"unicode"
)

// SafeName makes s usable as a file name on every platform: whitespace,
// path separators, reserved characters and control characters become "_".
// fallback is returned when nothing usable is left.
func SafeName(s, fallback string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsSpace(r), unicode.IsControl(r), strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	name := strings.Trim(b.String(), ".")
	if name == "" {
		return fallback
	}
	return name
}
