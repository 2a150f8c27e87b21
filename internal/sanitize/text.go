// Package sanitize turns free text from external feeds into plain text.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips HTML from input and returns plain text. Entities escaped by
// the policy are decoded again since the result is never rendered as HTML
// by this service.
func Text(input string) string {
	if input == "" {
		return ""
	}
	s := StrictPolicy.Sanitize(input)
	return strings.TrimSpace(html.UnescapeString(s))
}

// Line is Text with runs of whitespace, newlines included, collapsed to a
// single space. Used for titles and locations.
func Line(input string) string {
	return strings.Join(strings.Fields(Text(input)), " ")
}
