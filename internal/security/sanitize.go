// Package security strips markup from free text before it is stored.
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer removes every HTML element from user supplied text. Script
// and style bodies are dropped along with their tags. The result is plain
// text with entities decoded, suitable for JSON and CSV output.
type TextSanitizer struct {
	policy *bluemonday.Policy
}

func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean sanitizes s and trims surrounding whitespace.
func (s *TextSanitizer) Clean(in string) string {
	if in == "" {
		return ""
	}
	out := s.policy.Sanitize(in)
	return strings.TrimSpace(html.UnescapeString(out))
}
