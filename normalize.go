package sqlt

import (
	"regexp"
	"strings"
)

var (
	commentsRE        = regexp.MustCompile(`--[^\n]*\n?`)
	whitespaceRE      = regexp.MustCompile(`\s+`)
	extraWhitespaceRE = regexp.MustCompile(` *([(),]) *`)
	quotesRE          = regexp.MustCompile(`"(\w+)"`)
)

// Normalize canonicalizes a DDL fragment for equality comparison only;
// the result is never written back to the database. It strips
// line comments, collapses whitespace, trims space around punctuation
// and unwraps double-quoted bare identifiers, so that syntactically
// equivalent CREATE statements compare equal regardless of how the
// user originally formatted them.
func Normalize(sql string) string {
	s := commentsRE.ReplaceAllString(sql, "")
	s = whitespaceRE.ReplaceAllString(s, " ")
	s = extraWhitespaceRE.ReplaceAllString(s, "$1")
	s = quotesRE.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}
