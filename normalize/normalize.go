// Package normalize turns raw extracted markup into the canonical string that
// pagewatch compares between polls.
//
// The tag strip is deliberately naive: anything between '<' and the next '>'
// is dropped, with no knowledge of nesting, comments or entities. Two
// renderings that differ only in tag structure or whitespace normalise to the
// same string.
package normalize

import (
	"regexp"
	"strings"
)

var (
	tagRe   = regexp.MustCompile(`<[^>]+>`)
	spaceRe = regexp.MustCompile(` {2,}`)

	whitespace = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")
)

// Normalize strips markup tags, turns newlines and tabs into spaces,
// collapses runs of spaces and trims the result. It never fails.
func Normalize(raw string) string {
	s := tagRe.ReplaceAllString(raw, "")
	s = whitespace.Replace(s)
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.Trim(s, " ")
}
