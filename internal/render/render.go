// Package render turns a ResponsePayload into the Markdown reply shown in the chat bubble.
package render

import (
	"fmt"
	"strings"

	"basegraph.app/triage/internal/model"
)

// Section headings shared with the prompt style contract.
const (
	HeadingUnderstood = "### Ce que j'ai compris"
	HeadingCauses     = "### Causes possibles"
	HeadingAdvice     = "### Ce que je te conseille"
	HeadingNext       = "### Prochaine étape"
)

// Markdown renders p with the four fixed sections. CTAs are not rendered:
// they travel in nextAction and are shown as buttons.
func Markdown(p model.ResponsePayload) string {
	var sb strings.Builder

	if p.Title != "" {
		fmt.Fprintf(&sb, "**%s**\n\n", p.Title)
	}

	sb.WriteString(HeadingUnderstood + "\n")
	sb.WriteString(p.Summary + "\n\n")

	sb.WriteString(HeadingCauses + "\n")
	if len(p.Suspected) == 0 {
		sb.WriteString("Je dois d'abord en savoir un peu plus pour te répondre.\n\n")
	} else {
		writeBullets(&sb, p.Suspected)
		fmt.Fprintf(&sb, "Niveau de risque : **%s**\n\n", riskLabel(p.Risk))
	}

	sb.WriteString(HeadingAdvice + "\n")
	if len(p.Questions) > 0 {
		sb.WriteString("Réponds à ces questions :\n")
		for i, q := range p.Questions {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
		}
		sb.WriteString("\n")
	}
	writeBullets(&sb, p.Actions)

	sb.WriteString(HeadingNext + "\n")
	switch {
	case len(p.FollowUp) > 0:
		for _, f := range p.FollowUp {
			sb.WriteString(f + "\n")
		}
	case p.CTA.Reason != "":
		sb.WriteString(p.CTA.Reason + "\n")
	default:
		sb.WriteString(p.CTA.Label + "\n")
	}

	if p.Legal != "" {
		sb.WriteString("\n" + p.Legal + "\n")
	}

	return sb.String()
}

func writeBullets(sb *strings.Builder, items []string) {
	if len(items) == 0 {
		return
	}
	for _, it := range items {
		sb.WriteString("- " + it + "\n")
	}
	sb.WriteString("\n")
}

func riskLabel(r model.Risk) string {
	switch r {
	case model.RiskHigh:
		return "élevé"
	case model.RiskModerate:
		return "modéré"
	default:
		return "faible"
	}
}
