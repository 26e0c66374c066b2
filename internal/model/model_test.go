package model_test

import (
	"basegraph.app/triage/internal/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NextActionTypeFor", func() {
	DescribeTable("derives the action type from category and triage",
		func(category model.Category, triage bool, expected model.NextActionType) {
			Expect(model.NextActionTypeFor(category, triage)).To(Equal(expected))
		},
		Entry("FAP triage", model.CategoryFAP, true, model.NextActionFAPTriage),
		Entry("DIAG triage", model.CategoryDIAG, true, model.NextActionDIAGTriage),
		Entry("FAP diagnosis", model.CategoryFAP, false, model.NextActionFAP),
		Entry("DIAG diagnosis", model.CategoryDIAG, false, model.NextActionDIAG),
	)
})

var _ = Describe("LastUserMessage", func() {
	It("returns the latest user turn", func() {
		turns := []model.ConversationTurn{
			{Role: model.RoleUser, Content: "premier"},
			{Role: model.RoleAssistant, Content: "réponse"},
			{Role: model.RoleUser, Content: "second"},
			{Role: model.RoleAssistant, Content: "réponse 2"},
		}
		Expect(model.LastUserMessage(turns)).To(Equal("second"))
	})

	It("returns empty without user turns", func() {
		Expect(model.LastUserMessage(nil)).To(BeEmpty())
	})
})

var _ = Describe("ResponsePayload.Clone", func() {
	It("does not share slices with the original", func() {
		orig := model.ResponsePayload{
			Actions: []string{"a"},
			AltCTA:  []model.CTA{{Label: "x", URL: "https://x"}},
		}
		cp := orig.Clone()
		cp.Actions[0] = "b"
		cp.AltCTA[0].Label = "y"

		Expect(orig.Actions[0]).To(Equal("a"))
		Expect(orig.AltCTA[0].Label).To(Equal("x"))
	})
})

var _ = Describe("enums", func() {
	It("validates stage and risk", func() {
		Expect(model.StageHandoff.Valid()).To(BeTrue())
		Expect(model.Stage("done").Valid()).To(BeFalse())
		Expect(model.RiskModerate.Valid()).To(BeTrue())
		Expect(model.Risk("critical").Valid()).To(BeFalse())
	})
})
