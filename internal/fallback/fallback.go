// Package fallback produces the canned answers used whenever the model path
// cannot produce a valid payload. Every (category, triage) pair has one.
package fallback

import (
	"basegraph.app/triage/internal/cta"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/render"
)

const legal = "Informations indicatives : elles ne remplacent pas le contrôle d'un professionnel."

// FAPTriageQuestions is the fixed checklist asked before any FAP diagnosis.
var FAPTriageQuestions = []string{
	"Quel voyant est allumé au tableau de bord (FAP, moteur, préchauffage) ?",
	"As-tu remarqué une perte de puissance ou un passage en mode dégradé ?",
	"Vois-tu de la fumée noire à l'échappement, surtout à l'accélération ?",
	"Fais-tu surtout des trajets courts en ville ?",
	"As-tu un code défaut relevé à la valise (par exemple P2002 ou P2463) ?",
}

// DIAGTriageQuestions is the fixed checklist for general symptoms.
var DIAGTriageQuestions = []string{
	"Depuis quand le symptôme est-il apparu ?",
	"Est-il permanent ou seulement par moments ?",
	"Dans quelle situation le remarques-tu (à froid, au freinage, en accélération, à vitesse stable) ?",
	"Un voyant est-il allumé au tableau de bord ?",
	"Quel est le modèle, l'année et le kilométrage du véhicule ?",
}

// OODReply is the universal message for questions outside the automotive domain.
const OODReply = `### Ce que j'ai compris
Ta question ne semble pas concerner un problème de véhicule.

### Causes possibles
Je suis spécialisé dans le diagnostic automobile et le filtre à particules.

### Ce que je te conseille
Décris-moi le symptôme de ta voiture : voyant, bruit, fumée, perte de puissance…

### Prochaine étape
Dès que tu me parles de ton véhicule, je t'oriente vers la bonne solution.`

// Generator is a pure function of (category, triage) over a fixed CTA table.
type Generator struct {
	ctas *cta.Registry
}

func New(ctas *cta.Registry) *Generator {
	return &Generator{ctas: ctas}
}

// Payload never fails: unknown categories get the out-of-domain payload.
func (g *Generator) Payload(category model.Category, triage bool) model.ResponsePayload {
	switch category {
	case model.CategoryFAP:
		if triage {
			return g.fapTriage()
		}
		return g.fapDiagnosis()
	case model.CategoryDIAG:
		if triage {
			return g.diagTriage()
		}
		return g.diagDiagnosis()
	default:
		return g.outOfDomain()
	}
}

// Reply is the Markdown variant used by the plain-text flow.
func (g *Generator) Reply(category model.Category, triage bool) string {
	if category != model.CategoryFAP && category != model.CategoryDIAG {
		return OODReply
	}
	return render.Markdown(g.Payload(category, triage))
}

// Triage is shorthand for the triage payload of category, used by the guardrail.
func (g *Generator) Triage(category model.Category) model.ResponsePayload {
	if category != model.CategoryFAP {
		category = model.CategoryDIAG
	}
	return g.Payload(category, true)
}

// FAPDiagnosis is the payload forced when safety signals point at the FAP.
func (g *Generator) FAPDiagnosis() model.ResponsePayload {
	return g.fapDiagnosis()
}

func (g *Generator) withCTAs(p model.ResponsePayload, category model.Category, triage bool) model.ResponsePayload {
	e := g.ctas.Lookup(category, triage)
	p.CTA = e.Primary
	p.AltCTA = e.Alternates
	p.Legal = legal
	return p
}

func (g *Generator) fapTriage() model.ResponsePayload {
	return g.withCTAs(model.ResponsePayload{
		Stage:     model.StageTriage,
		Title:     "Vérifions si ton FAP est en cause",
		Summary:   "Pour savoir si le filtre à particules est colmaté, j'ai besoin de quelques précisions.",
		Questions: append([]string(nil), FAPTriageQuestions...),
		Risk:      model.RiskLow,
		FollowUp:  []string{"Réponds à ces questions et je te dirai si ton FAP est en cause."},
	}, model.CategoryFAP, true)
}

func (g *Generator) fapDiagnosis() model.ResponsePayload {
	return g.withCTAs(model.ResponsePayload{
		Stage:   model.StageDiagnosis,
		Title:   "Ton FAP est probablement colmaté",
		Summary: "Voyant, fumée noire ou perte de puissance sont les signes typiques d'un filtre à particules saturé.",
		Suspected: []string{
			"FAP colmaté (filtre à particules saturé de suie)",
			"Régénérations interrompues par des trajets trop courts",
			"Capteur de pression différentielle à contrôler",
		},
		Risk: model.RiskModerate,
		Actions: []string{
			"Évite de forcer le moteur tant que le voyant est allumé.",
			"Ne roule pas longtemps en mode dégradé : le turbo et la vanne EGR peuvent en souffrir.",
			"Fais nettoyer le FAP plutôt que de le remplacer : c'est nettement moins cher.",
		},
		FollowUp: []string{"Ton FAP est-il encore monté sur le véhicule, ou déjà démonté ?"},
	}, model.CategoryFAP, false)
}

func (g *Generator) diagTriage() model.ResponsePayload {
	return g.withCTAs(model.ResponsePayload{
		Stage:     model.StageTriage,
		Title:     "Précisons ton symptôme",
		Summary:   "Ce symptôme peut avoir plusieurs origines : quelques détails m'aideront à t'orienter.",
		Questions: append([]string(nil), DIAGTriageQuestions...),
		Risk:      model.RiskLow,
		FollowUp:  []string{"Réponds à ces questions et je t'indique les pistes les plus probables."},
	}, model.CategoryDIAG, true)
}

func (g *Generator) diagDiagnosis() model.ResponsePayload {
	return g.withCTAs(model.ResponsePayload{
		Stage:   model.StageDiagnosis,
		Title:   "Un diagnostic en garage s'impose",
		Summary: "Je ne peux pas trancher à distance : une lecture électronique et un essai routier donneront la cause exacte.",
		Risk:    model.RiskModerate,
		Actions: []string{
			"Note quand le symptôme apparaît (à froid, au freinage, à quelle vitesse).",
			"Relève les voyants allumés au tableau de bord.",
			"Fais contrôler le véhicule avant un long trajet.",
		},
		FollowUp: []string{"Un mécanicien confirmera la cause avant toute réparation."},
	}, model.CategoryDIAG, false)
}

func (g *Generator) outOfDomain() model.ResponsePayload {
	return g.withCTAs(model.ResponsePayload{
		Stage:    model.StageHandoff,
		Title:    "Je suis spécialisé dans l'automobile",
		Summary:  "Ta question ne semble pas concerner un véhicule. Décris-moi un symptôme de ta voiture et je t'oriente.",
		Risk:     model.RiskLow,
		FollowUp: []string{"Quel symptôme remarques-tu sur ton véhicule ?"},
	}, model.CategoryDIAG, true)
}
