package guardrail_test

import (
	"context"

	"basegraph.app/triage/internal/cta"
	"basegraph.app/triage/internal/fallback"
	"basegraph.app/triage/internal/guardrail"
	"basegraph.app/triage/internal/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func modelPayload() model.ResponsePayload {
	return model.ResponsePayload{
		Stage:     model.StageDiagnosis,
		Title:     "Vanne EGR encrassée",
		Summary:   "Les à-coups viennent sans doute de l'admission.",
		Suspected: []string{"Vanne EGR", "Débitmètre"},
		Risk:      model.RiskLow,
		Actions:   []string{"Faire un nettoyage admission."},
		CTA:       model.CTA{Label: "Diagnostic", URL: "https://x.test/diagnostic"},
	}
}

var _ = Describe("Signals", func() {
	DescribeTable("DetectSignals",
		func(message string, want guardrail.Signals) {
			Expect(guardrail.DetectSignals(message)).To(Equal(want))
		},
		Entry("all three", "voyant fap allumé, fumée noire, perte de puissance",
			guardrail.Signals{Light: true, BlackSmoke: true, PowerLoss: true}),
		Entry("accents missing", "VOYANT MOTEUR orange et fumee noire",
			guardrail.Signals{Light: true, BlackSmoke: true}),
		Entry("degraded mode", "la voiture passe en mode dégradé",
			guardrail.Signals{PowerLoss: true}),
		Entry("fap lit", "mon fap s'est allumé hier",
			guardrail.Signals{Light: true}),
		Entry("bare light on", "le voyant est allumé depuis ce matin",
			guardrail.Signals{Light: true}),
		Entry("bare light with power loss", "témoin allumé et perte de puissance",
			guardrail.Signals{Light: true, PowerLoss: true}),
		Entry("light mentioned but off", "le voyant s'est éteint",
			guardrail.Signals{}),
		Entry("nothing", "bruit de roulement à 90 km/h",
			guardrail.Signals{}),
	)

	It("counts the signals that are on", func() {
		Expect(guardrail.Signals{Light: true, PowerLoss: true}.Count()).To(Equal(2))
		Expect(guardrail.Signals{}.Count()).To(BeZero())
	})

	DescribeTable("IsGeneric",
		func(message string, want bool) {
			Expect(guardrail.IsGeneric(message)).To(Equal(want))
		},
		Entry("empty", "", true),
		Entry("blank", "   ", true),
		Entry("fap alone", "fap", true),
		Entry("two stopwords", "Panne moteur", true),
		Entry("punctuated", "FAP ?", true),
		Entry("one real word", "fap colmaté", false),
		Entry("three stopwords", "bonjour panne fap", false),
	)
})

var _ = Describe("Guardrail", func() {
	var (
		fb *fallback.Generator
		g  *guardrail.Guardrail
		ctx context.Context
	)

	BeforeEach(func() {
		fb = fallback.New(cta.NewRegistry("https://x.test"))
		g = guardrail.New(fb)
		ctx = context.Background()
	})

	Describe("Override", func() {
		It("forces the FAP triage payload for a bare \"fap\"", func() {
			out, decision := g.Override(ctx, model.CategoryFAP, "fap", modelPayload())

			Expect(decision).To(Equal(guardrail.DecisionGenericTriage))
			Expect(out.Stage).To(Equal(model.StageTriage))
			Expect(out.Questions).To(HaveLen(5))
			Expect(out.Questions).To(Equal(fallback.FAPTriageQuestions))
			Expect(out.Risk).To(Equal(model.RiskLow))
		})

		It("uses the DIAG triage payload for a generic DIAG message", func() {
			out, decision := g.Override(ctx, model.CategoryDIAG, "panne", modelPayload())

			Expect(decision).To(Equal(guardrail.DecisionGenericTriage))
			Expect(out.Questions).To(Equal(fallback.DIAGTriageQuestions))
		})

		It("overrides to the FAP diagnosis when three signals are present", func() {
			out, decision := g.Override(ctx, model.CategoryFAP,
				"voyant fap allumé, fumée noire, perte de puissance", modelPayload())

			Expect(decision).To(Equal(guardrail.DecisionFAPSignals))
			Expect(out).To(Equal(fb.FAPDiagnosis()))
			Expect(out.Risk).To(Equal(model.RiskModerate))
		})

		DescribeTable("ignores the candidate when all signals are present",
			func(candidate model.ResponsePayload) {
				out, _ := g.Override(ctx, model.CategoryDIAG,
					"Témoin moteur allumé, fumée noire et la voiture n'avance plus", candidate)
				Expect(out).To(Equal(fb.FAPDiagnosis()))
			},
			Entry("valid model payload", modelPayload()),
			Entry("empty payload", model.ResponsePayload{}),
			Entry("DIAG triage payload", fallback.New(cta.NewRegistry("https://x.test")).Triage(model.CategoryDIAG)),
			Entry("high risk payload", func() model.ResponsePayload {
				p := modelPayload()
				p.Risk = model.RiskHigh
				p.Suspected = []string{"Turbo"}
				return p
			}()),
		)

		It("keeps a payload that already suspects the FAP", func() {
			p := modelPayload()
			p.Suspected = []string{"Filtre à particules (FAP) saturé"}

			out, decision := g.Override(ctx, model.CategoryFAP, "voyant fap et fumée noire depuis ce matin", p)

			Expect(decision).To(Equal(guardrail.DecisionKeep))
			Expect(out).To(Equal(p))
		})

		It("does not force the diagnosis on a single signal", func() {
			p := modelPayload()
			out, decision := g.Override(ctx, model.CategoryFAP, "grosse fumée noire au démarrage", p)

			Expect(decision).To(Equal(guardrail.DecisionKeep))
			Expect(out).To(Equal(p))
		})

		It("replaces an invalid payload with the triage payload", func() {
			p := modelPayload()
			p.CTA.URL = ""

			out, decision := g.Override(ctx, model.CategoryDIAG, "bruit sourd au freinage depuis une semaine", p)

			Expect(decision).To(Equal(guardrail.DecisionInvalidTriage))
			Expect(out).To(Equal(fb.Triage(model.CategoryDIAG)))
		})
	})

	Describe("Escalate", func() {
		It("raises the risk and puts the stop action first", func() {
			p := modelPayload()
			out, escalated := g.Escalate("ça sent le brûlé quand je freine", p)

			Expect(escalated).To(BeTrue())
			Expect(out.Risk).To(Equal(model.RiskHigh))
			Expect(out.Actions[0]).To(Equal(guardrail.StopAction))
			Expect(out.Actions[1:]).To(Equal(p.Actions))
			Expect(p.Risk).To(Equal(model.RiskLow), "input must not be mutated")
		})

		It("caps the action list", func() {
			p := modelPayload()
			p.Actions = []string{"a", "b", "c", "d", "e"}

			out, _ := g.Escalate("bruit métallique à l'avant", p)

			Expect(out.Actions).To(HaveLen(model.MaxActions))
			Expect(out.Actions[0]).To(Equal(guardrail.StopAction))
		})

		It("is stable when applied twice", func() {
			once, _ := g.Escalate("odeur de brûlé", modelPayload())
			twice, _ := g.Escalate("odeur de brûlé", once)
			Expect(twice).To(Equal(once))
		})

		It("leaves other messages alone", func() {
			p := modelPayload()
			out, escalated := g.Escalate("vibration à 110 km/h", p)

			Expect(escalated).To(BeFalse())
			Expect(out).To(Equal(p))
		})
	})

	DescribeTable("SuspectsFAP",
		func(suspected []string, want bool) {
			Expect(guardrail.SuspectsFAP(model.ResponsePayload{Suspected: suspected})).To(Equal(want))
		},
		Entry("none", nil, false),
		Entry("upper", []string{"FAP colmaté"}, true),
		Entry("dpf", []string{"DPF clogged"}, true),
		Entry("other", []string{"Turbo", "Vanne EGR"}, false),
	)
})
