package extract

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	newlineRe    = regexp.MustCompile(`\n+`)
)

// Normalize collapses whitespace runs to a single space and newline runs to
// a single newline, then trims. Idempotent; empty input yields empty output.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = newlineRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}
