// Package guardrail enforces business and safety rules on every payload,
// whether it came from the model or the fallback generator.
package guardrail

import (
	"context"
	"log/slog"
	"strings"

	"basegraph.app/triage/common/logger"
	"basegraph.app/triage/internal/contract"
	"basegraph.app/triage/internal/fallback"
	"basegraph.app/triage/internal/model"
)

// Decision names the override rule that fired.
type Decision string

const (
	DecisionGenericTriage Decision = "generic_triage"
	DecisionFAPSignals    Decision = "fap_signals"
	DecisionInvalidTriage Decision = "invalid_triage"
	DecisionKeep          Decision = "keep"
	DecisionEscalate      Decision = "escalate"
)

// MinFAPSignals is how many safety signals force the FAP diagnosis.
const MinFAPSignals = 2

// Input is what the override rules look at.
type Input struct {
	Category model.Category
	Message  string
	Signals  Signals
	Payload  model.ResponsePayload
}

// Rule replaces the payload when Applies holds.
type Rule struct {
	Decision Decision
	Applies  func(in Input) bool
	Replace  func(fb *fallback.Generator, in Input) model.ResponsePayload
}

// Rules is evaluated in order, first match wins; no match keeps the payload.
var Rules = []Rule{
	{
		Decision: DecisionGenericTriage,
		Applies:  func(in Input) bool { return IsGeneric(in.Message) },
		Replace:  func(fb *fallback.Generator, in Input) model.ResponsePayload { return fb.Triage(in.Category) },
	},
	{
		Decision: DecisionFAPSignals,
		Applies: func(in Input) bool {
			return in.Signals.Count() >= MinFAPSignals && !SuspectsFAP(in.Payload)
		},
		Replace: func(fb *fallback.Generator, _ Input) model.ResponsePayload { return fb.FAPDiagnosis() },
	},
	{
		Decision: DecisionInvalidTriage,
		Applies:  func(in Input) bool { return contract.Validate(in.Payload) != nil },
		Replace:  func(fb *fallback.Generator, in Input) model.ResponsePayload { return fb.Triage(in.Category) },
	},
}

type Guardrail struct {
	fallback *fallback.Generator
}

func New(fb *fallback.Generator) *Guardrail {
	return &Guardrail{fallback: fb}
}

// Override applies Rules to payload using the latest user message. It does
// not consult the model: the outcome depends only on message and payload.
func (g *Guardrail) Override(ctx context.Context, category model.Category, message string, payload model.ResponsePayload) (model.ResponsePayload, Decision) {
	in := Input{
		Category: category,
		Message:  message,
		Signals:  DetectSignals(message),
		Payload:  payload,
	}

	for _, r := range Rules {
		if r.Applies(in) {
			slog.InfoContext(logger.WithLogFields(ctx, logger.LogFields{Component: "triage.guardrail"}),
				"guardrail override",
				"decision", r.Decision,
				"signals", in.Signals.Count())
			return r.Replace(g.fallback, in), r.Decision
		}
	}
	return payload, DecisionKeep
}

// Escalate raises risk to high and puts an immediate-stop action first when
// the message reports a burnt smell or a metallic noise.
func (g *Guardrail) Escalate(message string, payload model.ResponsePayload) (model.ResponsePayload, bool) {
	if !IsCritical(message) {
		return payload, false
	}

	out := payload.Clone()
	out.Risk = model.RiskHigh
	actions := []string{StopAction}
	for _, a := range out.Actions {
		if a != StopAction {
			actions = append(actions, a)
		}
	}
	if len(actions) > model.MaxActions {
		actions = actions[:model.MaxActions]
	}
	out.Actions = actions
	return out, true
}

// StopAction is prepended by Escalate.
const StopAction = "Arrête-toi dès que possible en sécurité et coupe le moteur : ne reprends pas la route avant un contrôle."

// SuspectsFAP reports whether any suspected cause names the FAP/DPF.
func SuspectsFAP(p model.ResponsePayload) bool {
	for _, s := range p.Suspected {
		l := strings.ToLower(s)
		if strings.Contains(l, "fap") || strings.Contains(l, "dpf") {
			return true
		}
	}
	return false
}
