// Package textnorm turns raw ticket fields into the normalized text every
// other calldriver component works on: lowercase, [a-z0-9] and single spaces.
package textnorm

import (
	"regexp"
	"strings"
)

var (
	// Spreadsheet exports escape control characters as _x000D_ and friends.
	// Matched after lowercasing, so the hex digits are lowercase here.
	exportEscape = regexp.MustCompile(`_x[0-9a-f]{4}_`)
	nonAlnum     = regexp.MustCompile(`[^a-z0-9\s]+`)
	spaces       = regexp.MustCompile(`\s+`)
)

// Normalize cleans a raw field. It is total: nil and values that are not
// strings normalize to "".
func Normalize(raw any) string {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return ""
	}
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	s = exportEscape.ReplaceAllString(s, " ")
	s = nonAlnum.ReplaceAllString(s, " ")
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Combine joins raw fields with a single space and normalizes the result,
// e.g. Combine(shortDescription, description).
func Combine(fields ...string) string {
	return Normalize(strings.Join(fields, " "))
}

// Stopper reports whether a token should be dropped.
type Stopper interface {
	IsStop(token string) bool
}

// Tokens normalizes s and splits it into tokens of at least minLen bytes
// that stop does not reject. A nil stop keeps every token.
func Tokens(s string, minLen int, stop Stopper) []string {
	fields := strings.Fields(Normalize(s))
	out := fields[:0]
	for _, f := range fields {
		if len(f) < minLen {
			continue
		}
		if stop != nil && stop.IsStop(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}
