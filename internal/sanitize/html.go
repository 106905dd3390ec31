// Package sanitize strips markup from user supplied text before it is stored.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips all HTML tags and returns plain text.
func Text(input string) string {
	return StrictPolicy.Sanitize(input)
}

// Line strips HTML and surrounding whitespace. Use for single line fields
// such as names, titles and locations.
func Line(input string) string {
	return strings.TrimSpace(Text(input))
}
