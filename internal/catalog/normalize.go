package catalog

import (
	"strings"
)

// Marker is the star glyph some printings carry in their collector number.
const Marker = '★'

// NormalizeCollectorNumber lowercases raw and drops every rune except ASCII
// digits, ASCII lowercase letters and Marker. The result is idempotent.
func NormalizeCollectorNumber(raw string) string {
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToLower(raw) {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || r == Marker {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RawCollectorNumber is the lowercase, unstripped collector number used by
// the fallback lookup.
func RawCollectorNumber(raw string) string {
	return strings.ToLower(raw)
}

// HasMarker reports whether raw contains Marker.
func HasMarker(raw string) bool {
	return strings.ContainsRune(raw, Marker)
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
