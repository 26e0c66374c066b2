package model

// Category is the symptom family a question belongs to.
// OOD exists only between the classifier and the clamp; everything
// downstream sees FAP or DIAG.
type Category string

const (
	CategoryFAP  Category = "FAP"
	CategoryDIAG Category = "DIAG"
	CategoryOOD  Category = "OOD"
)

func (c Category) String() string {
	return string(c)
}

type NextActionType string

const (
	NextActionFAPTriage  NextActionType = "FAP_TRIAGE"
	NextActionDIAGTriage NextActionType = "DIAG_TRIAGE"
	NextActionFAP        NextActionType = "FAP"
	NextActionDIAG       NextActionType = "DIAG"
)

// NextAction tells the rendering layer which buttons to show after the reply.
type NextAction struct {
	Type NextActionType `json:"type"`
	CTAs []CTA          `json:"ctas"`
}

// NextActionTypeFor maps (category, triage) to the action type.
func NextActionTypeFor(category Category, triage bool) NextActionType {
	if triage {
		if category == CategoryFAP {
			return NextActionFAPTriage
		}
		return NextActionDIAGTriage
	}
	if category == CategoryFAP {
		return NextActionFAP
	}
	return NextActionDIAG
}
