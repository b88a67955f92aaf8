package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// maxVerbatimInput is the longest input embedded in a key as-is.
const maxVerbatimInput = 48

// Key derives "service:operation:input". Short inputs made only of
// [a-z0-9._-] are embedded lower-cased; anything else is replaced by a
// truncated SHA-256 of the lower-cased input.
func Key(service, operation, input string) string {
	return segment(service) + ":" + segment(operation) + ":" + inputSegment(input)
}

// Compose joins parts into a single key input. Order matters.
func Compose(parts ...string) string {
	return strings.Join(parts, "|")
}

func inputSegment(input string) string {
	in := strings.ToLower(strings.TrimSpace(input))
	if in != "" && len(in) <= maxVerbatimInput && isSafe(in) {
		return in
	}
	sum := sha256.Sum256([]byte(in))
	return hex.EncodeToString(sum[:16])
}

func segment(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		if isSafeRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func isSafe(s string) bool {
	for _, r := range s {
		if !isSafeRune(r) {
			return false
		}
	}
	return true
}

func isSafeRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_'
}
