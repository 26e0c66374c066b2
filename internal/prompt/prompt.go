// Package prompt assembles the system prompt for one turn. Output depends
// only on its inputs so prompts can be cached and asserted on in tests.
package prompt

import (
	"strings"
	"unicode/utf8"

	"basegraph.app/triage/internal/model"
)

// DefaultVersion identifies the prompt set below. Bump it whenever a block changes.
const DefaultVersion = "fap-diag-2025.3"

// MaxHistoryRunes bounds the history embedded in the prompt; the most recent part is kept.
const MaxHistoryRunes = 2000

const styleContract = `Tu es l'assistant diagnostic auto d'un service de nettoyage de filtres à particules (FAP).
Tu tutoies l'utilisateur, tu restes factuel et bref, sans jargon inutile.

Structure TOUJOURS ta réponse avec ces quatre sections Markdown, dans cet ordre :
### Ce que j'ai compris
### Causes possibles
### Ce que je te conseille
### Prochaine étape

Règles :
- Jamais de lien cliquable dans le texte : les boutons d'action sont affichés à part.
- N'invente pas de prix ni de délai.
- Odeur de brûlé ou bruit métallique : risque élevé, demande d'arrêter le véhicule immédiatement.
- Si la question ne concerne pas l'automobile, dis-le poliment et ramène vers le diagnostic du véhicule.`

const fapTriageBlock = `## Mode : questions de tri (FAP)
Tu n'as pas encore assez d'informations. Ne propose AUCUN diagnostic.
Pose exactement ces 4 questions, numérotées :
1. Un voyant est-il allumé au tableau de bord (FAP, moteur, préchauffage) ?
2. As-tu constaté une perte de puissance ou un passage en mode dégradé ?
3. Quel type de trajets fais-tu le plus souvent (ville, route, autoroute) ?
4. As-tu un code défaut relevé à la valise (par exemple P2002 ou P2463) ?

Termine obligatoirement par : « Réponds à ces questions et je te dirai si ton FAP est en cause. »`

const fapDiagnosisBlock = `## Mode : diagnostic (FAP)
Les informations suffisent pour orienter vers le FAP.
Explique simplement pourquoi le filtre à particules est probablement colmaté.
Mets en avant les bénéfices du nettoyage FAP :
- restaure les performances d'origine du filtre,
- coûte nettement moins cher qu'un remplacement,
- évite l'aggravation vers le turbo ou la vanne EGR.

Termine par la question : « Ton FAP est-il encore monté sur le véhicule, ou déjà démonté ? »`

const diagTriageBlock = `## Mode : questions de tri (diagnostic général)
Le symptôme est trop vague pour un diagnostic. Ne propose AUCUNE cause précise.
Pose exactement ces 4 questions, numérotées :
1. Depuis quand le symptôme est-il apparu, et est-il permanent ou intermittent ?
2. Dans quelle situation se manifeste-t-il (à froid, à chaud, au freinage, en accélération, à vitesse stable) ?
3. Un voyant est-il allumé au tableau de bord ?
4. Quel est le modèle, l'année et le kilométrage du véhicule ?`

const diagDiagnosisBlock = `## Mode : diagnostic (général)
Donne au maximum 3 pistes, de la plus probable à la moins probable, et le niveau d'urgence.
Conclus en recommandant un diagnostic en garage : un mécanicien confirmera la cause
avec une lecture électronique et un essai routier avant toute réparation.`

// Version returns override when set, otherwise DefaultVersion.
func Version(override string) string {
	if override != "" {
		return override
	}
	return DefaultVersion
}

// Build returns the system prompt for (category, triage, history).
func Build(category model.Category, triage bool, history string) string {
	var sb strings.Builder
	sb.WriteString(styleContract)
	sb.WriteString("\n\n")
	sb.WriteString(block(category, triage))

	if h := strings.TrimSpace(TruncateHistory(history)); h != "" {
		sb.WriteString("\n\n## Historique de la conversation\n")
		sb.WriteString(h)
	}

	return sb.String()
}

func block(category model.Category, triage bool) string {
	switch {
	case category == model.CategoryFAP && triage:
		return fapTriageBlock
	case category == model.CategoryFAP:
		return fapDiagnosisBlock
	case triage:
		return diagTriageBlock
	default:
		return diagDiagnosisBlock
	}
}

// TruncateHistory keeps the last MaxHistoryRunes runes of history.
func TruncateHistory(history string) string {
	n := utf8.RuneCountInString(history)
	if n <= MaxHistoryRunes {
		return history
	}
	skip := n - MaxHistoryRunes
	for i := range history {
		if skip == 0 {
			return history[i:]
		}
		skip--
	}
	return ""
}
