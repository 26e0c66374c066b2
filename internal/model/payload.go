package model

type Stage string

const (
	StageTriage    Stage = "triage"
	StageDiagnosis Stage = "diagnosis"
	StageHandoff   Stage = "handoff"
)

func (s Stage) Valid() bool {
	switch s {
	case StageTriage, StageDiagnosis, StageHandoff:
		return true
	}
	return false
}

type Risk string

const (
	RiskLow      Risk = "low"
	RiskModerate Risk = "moderate"
	RiskHigh     Risk = "high"
)

func (r Risk) Valid() bool {
	switch r {
	case RiskLow, RiskModerate, RiskHigh:
		return true
	}
	return false
}

// Contract cardinality limits.
const (
	MaxSuspected = 3
	MaxActions   = 5
	MaxAltCTAs   = 2
	MaxFollowUps = 2
)

// CTA is a call-to-action rendered as a UI button.
type CTA struct {
	Label  string `json:"label" jsonschema:"required,minLength=1,description=Button text"`
	URL    string `json:"url" jsonschema:"required,minLength=1,description=Absolute URL the button opens"`
	Reason string `json:"reason,omitempty" jsonschema:"description=One sentence explaining why this step helps"`
}

// ResponsePayload is the JSON contract every structured answer satisfies.
type ResponsePayload struct {
	Stage     Stage    `json:"stage" jsonschema:"required,enum=triage,enum=diagnosis,enum=handoff"`
	Title     string   `json:"title" jsonschema:"required,minLength=1"`
	Summary   string   `json:"summary" jsonschema:"required,minLength=1"`
	Questions []string `json:"questions,omitempty"`
	Suspected []string `json:"suspected,omitempty" jsonschema:"maxItems=3"`
	Risk      Risk     `json:"risk" jsonschema:"required,enum=low,enum=moderate,enum=high"`
	Actions   []string `json:"actions,omitempty" jsonschema:"maxItems=5"`
	CTA       CTA      `json:"cta" jsonschema:"required"`
	AltCTA    []CTA    `json:"alt_cta,omitempty" jsonschema:"maxItems=2"`
	FollowUp  []string `json:"follow_up,omitempty" jsonschema:"maxItems=2"`
	Legal     string   `json:"legal,omitempty"`
}

// Clone returns a deep copy so canned payloads are never mutated by callers.
func (p ResponsePayload) Clone() ResponsePayload {
	out := p
	out.Questions = cloneStrings(p.Questions)
	out.Suspected = cloneStrings(p.Suspected)
	out.Actions = cloneStrings(p.Actions)
	out.FollowUp = cloneStrings(p.FollowUp)
	if p.AltCTA != nil {
		out.AltCTA = append([]CTA(nil), p.AltCTA...)
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
