// Package textnorm folds user text into the accent-free lowercase form the
// rule tables are written in.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var punctuation = strings.NewReplacer(
	"’", "'",
	"‘", "'",
	"\u00a0", " ",
	"œ", "oe",
	"Œ", "oe",
)

// Fold lowercases s and strips combining marks, so "Fumée NOIRE" and
// "fumee noire" compare equal.
func Fold(s string) string {
	// transform.Chain keeps state, build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(punctuation.Replace(out))
}

// WordPrefixPattern compiles keywords (already folded) into one regexp that
// matches any of them at the start of a word.
func WordPrefixPattern(keywords []string) *regexp.Regexp {
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)`)
}

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Tokens splits folded text into letter/digit runs.
func Tokens(s string) []string {
	return tokenPattern.FindAllString(s, -1)
}
