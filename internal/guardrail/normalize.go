package guardrail

import (
	"regexp"
	"strings"
)

// Apology replaces a reply that normalizes to nothing.
const Apology = "Désolé, je n'ai pas pu formuler de réponse. Peux-tu reformuler ta question ?"

const boldPlaceholder = "\x00"

var (
	inlineHeading  = regexp.MustCompile(`([^\s#])[ \t]+(#{2,6})([^#\n])`)
	headingSpacing = regexp.MustCompile(`(?m)^(#{2,6})([^ #\n])`)
	italic         = regexp.MustCompile(`\*([^*\s](?:[^*\n]*[^*\s])?)\*`)
	trailingSpace  = regexp.MustCompile(`(?m)[ \t]+$`)
	blankRun       = regexp.MustCompile(`\n{3,}`)
)

// Normalize tidies model Markdown. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	text = strings.ReplaceAll(text, boldPlaceholder, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSpace(text)

	text = strings.ReplaceAll(text, "**", boldPlaceholder)
	text = italic.ReplaceAllString(text, "$1")
	text = strings.ReplaceAll(text, boldPlaceholder, "**")

	// Matches consume the character after the markers, so adjacent headings
	// need another pass.
	for {
		split := inlineHeading.ReplaceAllString(text, "$1\n$2$3")
		if split == text {
			break
		}
		text = split
	}
	text = headingSpacing.ReplaceAllString(text, "$1 $2")

	text = trailingSpace.ReplaceAllString(text, "")
	text = blankRun.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return Apology
	}
	return text
}
