// Package sanitize strips markup from user-supplied text before it is stored
// and shown to other users.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strictPolicy removes every tag and attribute.
var strictPolicy = bluemonday.StrictPolicy()

// Text strips all HTML and returns plain text. Entities escaped by the policy
// are decoded again so "Tom & Jerry" survives unchanged.
func Text(input string) string {
	return html.UnescapeString(strictPolicy.Sanitize(input))
}

// ListName is Text plus whitespace trimming. A name made only of markup comes
// back empty and is rejected downstream as missing.
func ListName(input string) string {
	return strings.TrimSpace(Text(input))
}
