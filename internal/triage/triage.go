// Package triage decides whether a question carries enough detail for a
// diagnosis or must first go through the clarifying-question checklist.
package triage

import (
	"regexp"
	"unicode/utf8"

	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/textnorm"
)

// MinDetailedLength is the rune count under which a question always needs triage.
const MinDetailedLength = 20

var (
	// Fault codes (P2002, p242F), the dashboard light, an earlier diagnosis,
	// power loss or regeneration attempts make a FAP question concrete.
	fapDetailMarkers = regexp.MustCompile(`\bp[0-3][0-9a-f]{3}\b|\bvoyant|\bdiag|\bperte de puissance|\bregenera`)

	vagueSymptoms = regexp.MustCompile(`\bvibr|\bbruit|\btrembl`)

	// A vague symptom becomes actionable once it is tied to a situation.
	symptomContext = textnorm.WordPrefixPattern([]string{
		"vitesse", "km/h", "kmh", "autoroute", "accelera", "freinage", "frein",
		"roue", "roulement", "volant", "direction", "virage", "tourne",
		"ralenti", "demarrage", "a froid", "a chaud", "passage de vitesse",
		"avant", "arriere", "pedale",
	})
)

// Policy decides triage for one category. question is folded; history holds
// only the folded user-authored lines.
type Policy func(question, history string) bool

// Policies is keyed by category; categories without an entry never need triage.
var Policies = map[model.Category]Policy{
	model.CategoryFAP: func(question, history string) bool {
		if tooShort(question) {
			return true
		}
		return !fapDetailMarkers.MatchString(question) && !fapDetailMarkers.MatchString(history)
	},
	model.CategoryDIAG: func(question, _ string) bool {
		if tooShort(question) {
			return true
		}
		return vagueSymptoms.MatchString(question) && !symptomContext.MatchString(question)
	},
}

// NeedsTriage is recomputed on every turn; the result is never cached.
func NeedsTriage(category model.Category, question, history string) bool {
	policy, ok := Policies[category]
	if !ok {
		return false
	}
	return policy(textnorm.Fold(question), userLines(textnorm.Fold(history)))
}

func tooShort(question string) bool {
	return utf8.RuneCountInString(question) < MinDetailedLength
}
