package guardrail

import (
	"regexp"

	"basegraph.app/triage/internal/textnorm"
)

// Patterns run on folded text (lowercase, accents stripped).
var (
	lightPattern = regexp.MustCompile(
		`\b(?:voyant|temoin)s?\b.{0,30}?\b(?:fap|dpf|moteur|antipollution|filtre|orange)` +
			`|\b(?:voyant|temoin)s?\b.{0,20}?\ballum` +
			`|\b(?:fap|dpf)\b.{0,20}?\ballum` +
			`|\bcheck engine`)

	blackSmokePattern = regexp.MustCompile(
		`\bfumees?\s+noires?|\bfume\s+noir|\bfumee\b.{0,20}?\bnoire|\bblack\s+smoke`)

	powerLossPattern = regexp.MustCompile(
		`\bperte\s+de\s+puissance|\bmanque\s+de\s+puissance|\bplus\s+de\s+puissance` +
			`|\bmode\s+degrade|\bn'?avance\s+plus|\bbride\b|\bpower\s+loss|\bloss\s+of\s+power`)

	// Burnt smell or metallic noise means the driver should stop now.
	criticalPattern = regexp.MustCompile(
		`\bodeur\s+de\s+(?:brule|cram)|\bsent\s+le\s+(?:brule|cram)` +
			`|\b(?:bruit|claquement|grincement|frottement)s?\s+metalliques?` +
			`|\bmetallic\s+noise|\bburn(?:t|ing)\s+smell`)
)

// genericWords are the only tokens a "generic" message may contain.
var genericWords = map[string]struct{}{
	"fap": {}, "dpf": {}, "panne": {}, "diag": {}, "diagnostic": {},
	"aide": {}, "help": {}, "bonjour": {}, "salut": {}, "hello": {},
	"voiture": {}, "moteur": {}, "probleme": {}, "question": {}, "svp": {},
}

// MaxGenericTokens is the longest message still considered generic.
const MaxGenericTokens = 2

// Signals are the safety indicators read from the latest user message.
type Signals struct {
	Light      bool `json:"light"`
	BlackSmoke bool `json:"black_smoke"`
	PowerLoss  bool `json:"power_loss"`
}

func (s Signals) Count() int {
	n := 0
	for _, on := range []bool{s.Light, s.BlackSmoke, s.PowerLoss} {
		if on {
			n++
		}
	}
	return n
}

// DetectSignals matches the message regardless of case and accents.
func DetectSignals(message string) Signals {
	folded := textnorm.Fold(message)
	return Signals{
		Light:      lightPattern.MatchString(folded),
		BlackSmoke: blackSmokePattern.MatchString(folded),
		PowerLoss:  powerLossPattern.MatchString(folded),
	}
}

// IsGeneric reports an empty message or one made only of a couple of stopwords ("fap", "panne").
func IsGeneric(message string) bool {
	tokens := textnorm.Tokens(textnorm.Fold(message))
	if len(tokens) == 0 {
		return true
	}
	if len(tokens) > MaxGenericTokens {
		return false
	}
	for _, t := range tokens {
		if _, ok := genericWords[t]; !ok {
			return false
		}
	}
	return true
}

// IsCritical reports a burnt smell or metallic noise.
func IsCritical(message string) bool {
	return criticalPattern.MatchString(textnorm.Fold(message))
}
