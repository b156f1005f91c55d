package storage

import "strings"

// DefaultNamespace is the partition used when a name sanitizes to nothing.
const DefaultNamespace = "default"

// SanitizeNamespace lower-cases name and strips every character outside
// [a-z0-9]. Names that end up empty, including "" and "   ", collapse onto
// DefaultNamespace.
//
// Distinct raw names can therefore share a partition ("My-Queue" and
// "myqueue", or "" and "default"). Callers should treat that as expected.
func SanitizeNamespace(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return DefaultNamespace
	}
	return b.String()
}
