package guardrail

import (
	"regexp"

	"basegraph.app/triage/internal/model"
)

type rewrite struct {
	pattern *regexp.Regexp
	repl    string
}

// brandRewrites apply outside FAP, most specific first.
var brandRewrites = []rewrite{
	{regexp.MustCompile(`(?i)\bcentres?\s+(?:re-?fap|de\s+nettoyage)\b`), "garage"},
	{regexp.MustCompile(`(?i)\bnettoyage\s+(?:du\s+|de\s+(?:ton|votre|ce)\s+)?(?:fap|dpf|filtre\s+[àa]\s+particules)\b`), "diagnostic en garage"},
	{regexp.MustCompile(`(?i)\bre-?fap\b`), "garage"},
}

var markdownLink = regexp.MustCompile(`\[([^\]\n]+)\]\([^)\s]*\)`)

// Sanitize rewrites a plain-text reply: brand and cleaning-service mentions
// become generic garage wording outside FAP, and triage replies lose their
// inline links so CTAs only ever show up as buttons.
func Sanitize(text string, category model.Category, triage bool) string {
	if category != model.CategoryFAP {
		for _, rw := range brandRewrites {
			text = rw.pattern.ReplaceAllString(text, rw.repl)
		}
	}
	if triage {
		text = markdownLink.ReplaceAllString(text, "$1")
	}
	return text
}
