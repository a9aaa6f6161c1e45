// Package sanitize strips markup from post content before it is measured,
// matched or displayed.
package sanitize

import (
	"html"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func strict() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text removes every HTML tag and attribute from s and decodes the entities
// bluemonday leaves behind, so lengths are measured on visible characters.
func Text(s string) string {
	if s == "" {
		return ""
	}
	return html.UnescapeString(strict().Sanitize(s))
}

// Len is the rune length of the sanitized text.
func Len(s string) int {
	return len([]rune(Text(s)))
}

// Prefix returns at most n runes of the sanitized text.
func Prefix(s string, n int) string {
	r := []rune(Text(s))
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
