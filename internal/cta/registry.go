// Package cta holds the call-to-action table keyed by (category, triage).
package cta

import (
	"strings"

	"basegraph.app/triage/internal/model"
)

// Entry is the primary CTA plus up to two alternates for one table cell.
type Entry struct {
	Primary    model.CTA
	Alternates []model.CTA
}

// All returns primary first, then alternates.
func (e Entry) All() []model.CTA {
	out := make([]model.CTA, 0, 1+len(e.Alternates))
	out = append(out, e.Primary)
	return append(out, e.Alternates...)
}

type key struct {
	category model.Category
	triage   bool
}

// Registry is read-only after construction and safe for concurrent use.
type Registry struct {
	entries map[key]Entry
}

// NewRegistry builds the default table with links rooted at baseURL.
func NewRegistry(baseURL string) *Registry {
	base := strings.TrimRight(baseURL, "/")
	link := func(path string) string { return base + path }

	garages := model.CTA{
		Label:  "Trouver un garage partenaire",
		URL:    link("/garages-partenaires"),
		Reason: "Un garage proche de chez toi peut confirmer le diagnostic.",
	}

	return &Registry{entries: map[key]Entry{
		{model.CategoryFAP, true}: {
			Primary: model.CTA{
				Label:  "Faire diagnostiquer mon FAP",
				URL:    link("/diagnostic-fap"),
				Reason: "Un diagnostic confirme si le filtre est colmaté avant toute intervention.",
			},
		},
		{model.CategoryFAP, false}: {
			Primary: model.CTA{
				Label:  "Réserver un nettoyage FAP",
				URL:    link("/nettoyage-fap"),
				Reason: "Le nettoyage restaure le filtre sans le remplacer.",
			},
			Alternates: []model.CTA{
				garages,
				{
					Label:  "Envoyer mon FAP par transporteur",
					URL:    link("/envoi-fap"),
					Reason: "Si ton FAP est déjà démonté, il peut être nettoyé à distance.",
				},
			},
		},
		{model.CategoryDIAG, true}: {
			Primary: model.CTA{
				Label:  "Trouver un garage pour un diagnostic",
				URL:    link("/garages-partenaires"),
				Reason: "Un diagnostic électronique lève le doute rapidement.",
			},
		},
		{model.CategoryDIAG, false}: {
			Primary: model.CTA{
				Label:  "Prendre rendez-vous pour un diagnostic",
				URL:    link("/diagnostic"),
				Reason: "Un mécanicien vérifie les pistes identifiées et chiffre la réparation.",
			},
			Alternates: []model.CTA{garages},
		},
	}}
}

// Lookup returns the entry for (category, triage). Anything other than FAP
// is served the DIAG entries, so Lookup never misses.
func (r *Registry) Lookup(category model.Category, triage bool) Entry {
	if category != model.CategoryFAP {
		category = model.CategoryDIAG
	}
	e := r.entries[key{category, triage}]
	e.Alternates = append([]model.CTA(nil), e.Alternates...)
	return e
}

// CTAs returns the ordered button list for (category, triage).
func (r *Registry) CTAs(category model.Category, triage bool) []model.CTA {
	return r.Lookup(category, triage).All()
}
