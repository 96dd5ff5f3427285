// Package credential normalizes API keys pasted by operators.
package credential

import (
	"regexp"
	"strings"
)

var bearerPrefix = regexp.MustCompile(`(?i)^bearer\s+`)

// Normalize strips surrounding whitespace and the leading "Bearer " token
// (any case, followed by whitespace) from raw. Values that are not strings
// normalize to "".
//
// A doubled prefix ("Bearer Bearer sk-...") is stripped until none is left so
// that Normalize(Normalize(x)) == Normalize(x) holds for every input.
func Normalize(raw any) string {
	key, ok := raw.(string)
	if !ok {
		return ""
	}

	key = strings.TrimSpace(key)
	for bearerPrefix.MatchString(key) {
		key = strings.TrimSpace(bearerPrefix.ReplaceAllString(key, ""))
	}

	return key
}
