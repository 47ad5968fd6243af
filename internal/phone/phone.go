// Package phone canonicalizes channel addresses so that numbers imported by
// admins and numbers arriving from the transport compare equal.
package phone

import "strings"

// Canonicalize normalizes a raw channel address to "+<digits>".
// It strips the "whatsapp:" protocol prefix, drops everything that is not a
// digit, and enforces a single leading plus. An address with no digits
// canonicalizes to the empty string.
func Canonicalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "whatsapp:")

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if digits == "" {
		return ""
	}
	return "+" + digits
}
