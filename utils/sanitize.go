package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var textPolicy = bluemonday.StrictPolicy()

// SanitizeText strips every tag from user or admin supplied text and trims it.
// Entities produced by the policy are decoded so stored text stays plain.
func SanitizeText(input string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(input)))
}
