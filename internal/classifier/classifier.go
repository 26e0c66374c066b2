// Package classifier maps free-text symptom questions to a category.
package classifier

import (
	"regexp"

	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/textnorm"
)

// Keyword lists are written folded (lowercase, no accents) and match at word starts.
var (
	fapKeywords = []string{
		"fap", "dpf", "filtre a particule", "filtre particule",
		"p2463", "p2002", "p242f", "p244a", "p244b", "p2458",
		"regeneration", "regenerer", "colmatage", "colmate",
		"voyant fap", "additif fap", "cerine", "eolys",
	}

	diagKeywords = []string{
		"vibration", "vibre", "bruit", "claquement", "sifflement", "grincement", "tremble",
		"turbo", "egr", "vanne egr", "capteur", "sonde", "injecteur", "injection",
		"frein", "embrayage", "pneu", "boite de vitesse", "boite auto",
		"demarre", "demarrage", "surchauffe", "batterie", "alternateur",
		"courroie", "amortisseur", "direction", "liquide de refroidissement",
		"a-coup", "calage", "cale au", "ralenti",
	}

	automotiveHints = []string{
		"voiture", "vehicule", "auto", "moteur", "garage", "mecani",
		"code p", "obd", "panne", "voyant", "diesel", "essence",
		"kilometr", "km", "controle technique", "vidange", "carross",
		"citroen", "peugeot", "renault", "volkswagen", "vw", "audi", "bmw", "ford", "opel", "dacia",
	}
)

// Rule is one entry of the classification table.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Result  model.Category
}

// Rules is evaluated in order; the first matching rule wins and no match means OOD.
var Rules = []Rule{
	{Name: "fap_keyword", Pattern: textnorm.WordPrefixPattern(fapKeywords), Result: model.CategoryFAP},
	{Name: "diag_keyword", Pattern: textnorm.WordPrefixPattern(diagKeywords), Result: model.CategoryDIAG},
	// Automotive but unspecific: engage as a diagnostic question rather than refuse.
	{Name: "automotive_hint", Pattern: textnorm.WordPrefixPattern(automotiveHints), Result: model.CategoryDIAG},
}

// Classify returns FAP, DIAG or OOD for text.
func Classify(text string) model.Category {
	category, _ := ClassifyWithRule(text)
	return category
}

// ClassifyWithRule also reports the name of the rule that fired, "" for OOD.
func ClassifyWithRule(text string) (model.Category, string) {
	folded := textnorm.Fold(text)
	for _, r := range Rules {
		if r.Pattern.MatchString(folded) {
			return r.Result, r.Name
		}
	}
	return model.CategoryOOD, ""
}

// Clamp restricts a category to the externally visible {FAP, DIAG} space.
func Clamp(c model.Category) model.Category {
	if c == model.CategoryFAP {
		return model.CategoryFAP
	}
	return model.CategoryDIAG
}
