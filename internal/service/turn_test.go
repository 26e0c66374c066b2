package service_test

import (
	"context"
	"errors"
	"time"

	"basegraph.app/triage/common/id"
	telemetry "basegraph.app/triage/common/otel"
	"basegraph.app/triage/core/config"
	"basegraph.app/triage/internal/contract"
	"basegraph.app/triage/internal/cta"
	"basegraph.app/triage/internal/fallback"
	"basegraph.app/triage/internal/gateway"
	"basegraph.app/triage/internal/guardrail"
	"basegraph.app/triage/internal/llmtest"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/prompt"
	"basegraph.app/triage/internal/render"
	"basegraph.app/triage/internal/service"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const egrJSON = `{"stage":"diagnosis","title":"Vanne EGR encrassée","summary":"Les à-coups viennent sans doute de l'admission.","suspected":["Vanne EGR"],"risk":"low","actions":["Faire contrôler l'admission."],"cta":{"label":"Diagnostic","url":"https://model.test/diag"}}`

func testConfig() config.Config {
	return config.Config{
		Env: "test",
		LLM: config.LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			MaxTokens:   900,
			CallTimeout: time.Second,
		},
		Pipeline: config.PipelineConfig{
			ReplyMode:  config.ReplyModeStructured,
			CTABaseURL: "https://x.test",
		},
	}
}

var _ = Describe("TurnService", func() {
	var (
		ctx      context.Context
		cfg      config.Config
		rec      *mockRecorder
		fb       *fallback.Generator
		registry *cta.Registry
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = testConfig()
		rec = &mockRecorder{}
		registry = cta.NewRegistry("https://x.test")
		fb = fallback.New(registry)
	})

	newService := func(client *llmtest.Scripted) service.TurnService {
		holder := config.NewHolder(cfg, func() (config.Config, error) { return cfg, nil })
		if client == nil {
			return service.NewTurnService(holder, nil, rec)
		}
		return service.NewTurnService(holder, client, rec)
	}

	Describe("Analyze", func() {
		It("still answers when the draft call hits a network error", func() {
			client := llmtest.New(llmtest.Fail(errors.New("dial tcp: connection refused")))
			var res service.TurnResult
			Expect(func() {
				res = newService(client).Analyze(ctx, service.TurnRequest{Question: "bruit de roulement à 90 km/h sur autoroute"})
			}).NotTo(Panic())

			Expect(contract.Validate(res.Payload)).To(Succeed())
			Expect(res.Source).To(Equal(string(gateway.SourceFallback)))
			Expect(res.Payload).To(Equal(fb.Payload(model.CategoryDIAG, false)))
			Expect(res.Reply).To(ContainSubstring(render.HeadingUnderstood))
			Expect(res.NextAction.Type).To(Equal(model.NextActionDIAG))
			Expect(res.NextAction.CTAs).To(Equal(registry.CTAs(model.CategoryDIAG, false)))
			Expect(res.PromptVersion).To(Equal(prompt.DefaultVersion))
			Expect(res.TurnID).NotTo(BeZero())
		})

		It("forces the FAP checklist for a bare \"fap\"", func() {
			res := newService(llmtest.New(llmtest.Reply(egrJSON))).Analyze(ctx, service.TurnRequest{Question: "fap"})

			Expect(res.Source).To(Equal(service.SourceGuardrail))
			Expect(res.Payload.Questions).To(Equal(fallback.FAPTriageQuestions))
			Expect(res.Payload.Risk).To(Equal(model.RiskLow))
			Expect(res.NextAction.Type).To(Equal(model.NextActionFAPTriage))
			Expect(rec.decisions).To(ContainElement(guardrail.DecisionGenericTriage))
		})

		It("overrides a model answer that ignores three FAP signals", func() {
			res := newService(llmtest.New(llmtest.Reply(egrJSON))).Analyze(ctx, service.TurnRequest{
				Question: "voyant fap allumé, fumée noire, perte de puissance",
			})

			Expect(res.Category).To(Equal(model.CategoryFAP))
			Expect(res.Payload).To(Equal(fb.FAPDiagnosis()))
			Expect(res.Payload.Risk).To(Equal(model.RiskModerate))
			Expect(res.NextAction.Type).To(Equal(model.NextActionFAP))
			Expect(res.NextAction.CTAs).To(Equal(registry.CTAs(model.CategoryFAP, false)))
		})

		It("escalates the FAP diagnosis when the signals come with a burnt smell", func() {
			question := "voyant fap allumé, fumée noire, perte de puissance et odeur de brûlé"
			first := newService(llmtest.New(llmtest.Reply(egrJSON))).Analyze(ctx, service.TurnRequest{Question: question})
			second := newService(llmtest.New(llmtest.Reply(egrJSON))).Analyze(ctx, service.TurnRequest{Question: question})

			canned := fb.FAPDiagnosis()
			Expect(first.Source).To(Equal(service.SourceGuardrail))
			Expect(first.Category).To(Equal(model.CategoryFAP))
			Expect(first.Payload.Title).To(Equal(canned.Title))
			Expect(first.Payload.Suspected).To(Equal(canned.Suspected))
			Expect(first.Payload.Risk).To(Equal(model.RiskHigh))
			Expect(first.Payload.Actions[0]).To(Equal(guardrail.StopAction))
			Expect(first.NextAction.Type).To(Equal(model.NextActionFAP))
			Expect(rec.decisions).To(ContainElements(guardrail.DecisionFAPSignals, guardrail.DecisionEscalate))

			Expect(second.Payload).To(Equal(first.Payload))
			Expect(second.Reply).To(Equal(first.Reply))
		})

		It("keeps a valid model answer", func() {
			res := newService(llmtest.New(llmtest.Reply(egrJSON))).Analyze(ctx, service.TurnRequest{
				Question: "à-coups à l'accélération et la vanne egr a déjà été changée",
			})

			Expect(res.Source).To(Equal(string(gateway.SourceModel)))
			Expect(res.Payload.Title).To(Equal("Vanne EGR encrassée"))
			Expect(res.Reply).To(ContainSubstring("**Vanne EGR encrassée**"))
			Expect(res.Reply).NotTo(ContainSubstring("https://"))
		})

		It("escalates a burnt smell", func() {
			res := newService(llmtest.New(llmtest.Reply(egrJSON))).Analyze(ctx, service.TurnRequest{
				Question: "odeur de brûlé au freinage depuis hier soir",
			})

			Expect(res.Source).To(Equal(service.SourceGuardrail))
			Expect(res.Payload.Risk).To(Equal(model.RiskHigh))
			Expect(res.Payload.Actions[0]).To(Equal(guardrail.StopAction))
			Expect(res.Reply).To(ContainSubstring(guardrail.StopAction))
		})

		It("counts out-of-domain questions but still clamps them", func() {
			res := newService(nil).Analyze(ctx, service.TurnRequest{Question: "recette de cuisine"})

			Expect(rec.ood).To(Equal(1))
			Expect(res.Category).To(Equal(model.CategoryDIAG))
			Expect(res.NextAction.Type).To(Equal(model.NextActionDIAGTriage))
		})

		It("reads the question from structured messages", func() {
			client := llmtest.New(llmtest.Reply(egrJSON))
			newService(client).Analyze(ctx, service.TurnRequest{
				Messages: []model.ConversationTurn{
					{Role: model.RoleSystem, Content: "ignored"},
					{Role: model.RoleUser, Content: "ma voiture broute"},
					{Role: model.RoleAssistant, Content: "Depuis quand ?"},
					{Role: model.RoleUser, Content: "depuis une semaine, surtout à froid au démarrage"},
				},
			})

			msgs := client.Requests()[0].Messages
			Expect(msgs).To(HaveLen(4))
			Expect(msgs[0].Content).To(ContainSubstring("Utilisateur : ma voiture broute"))
			Expect(msgs[3].Content).To(Equal("depuis une semaine, surtout à froid au démarrage"))
		})

		It("asks the FAP checklist again when only the assistant named the markers", func() {
			res := newService(llmtest.New(llmtest.Reply(egrJSON))).Analyze(ctx, service.TurnRequest{
				Messages: []model.ConversationTurn{
					{Role: model.RoleUser, Content: "fap"},
					{Role: model.RoleAssistant, Content: "Quel voyant est allumé ? As-tu une perte de puissance ou un code P2002 ?"},
					{Role: model.RoleUser, Content: "j'ai un souci avec mon fap depuis hier"},
				},
			})

			Expect(res.Category).To(Equal(model.CategoryFAP))
			Expect(res.Triage).To(BeTrue())
			Expect(res.NextAction.Type).To(Equal(model.NextActionFAPTriage))
		})

		It("recovers a panic inside the pipeline", func() {
			rec.decisionFn = func(guardrail.Decision) { panic("boom") }

			var res service.TurnResult
			Expect(func() {
				res = newService(llmtest.New(llmtest.Reply(egrJSON))).Analyze(ctx, service.TurnRequest{Question: "fap"})
			}).NotTo(Panic())

			Expect(res.Source).To(Equal(string(gateway.SourceFallback)))
			Expect(res.Reply).NotTo(BeEmpty())
			Expect(contract.Validate(res.Payload)).To(Succeed())
			Expect(rec.turns).To(Equal(1))
		})
	})

	Describe("tracing", func() {
		var spans *tracetest.SpanRecorder

		BeforeEach(func() {
			spans = tracetest.NewSpanRecorder()
			prev := otel.GetTracerProvider()
			otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)))
			DeferCleanup(func() { otel.SetTracerProvider(prev) })
		})

		spanNamed := func(name string) sdktrace.ReadOnlySpan {
			for _, s := range spans.Ended() {
				if s.Name() == name {
					return s
				}
			}
			return nil
		}

		value := func(set attribute.Set, key attribute.Key) attribute.Value {
			v, _ := set.Value(key)
			return v
		}

		It("names the turn span by entry point and records its outcome", func() {
			res := newService(llmtest.New(llmtest.Reply(egrJSON))).Analyze(ctx, service.TurnRequest{
				Question: "voyant fap allumé, fumée noire, perte de puissance",
			})

			turnSpan := spanNamed(telemetry.TurnSpanName("analyze"))
			Expect(turnSpan).NotTo(BeNil())
			attrs := attribute.NewSet(turnSpan.Attributes()...)
			Expect(value(attrs, telemetry.AttrTurnID)).To(Equal(attribute.StringValue(id.Format(res.TurnID))))
			Expect(value(attrs, telemetry.AttrPromptVersion)).To(Equal(attribute.StringValue(prompt.DefaultVersion)))
			Expect(value(attrs, telemetry.AttrCategory)).To(Equal(attribute.StringValue(string(model.CategoryFAP))))
			Expect(value(attrs, telemetry.AttrSource)).To(Equal(attribute.StringValue(service.SourceGuardrail)))

			draft := spanNamed(telemetry.ModelCallSpanName("draft"))
			Expect(draft).NotTo(BeNil())
			Expect(draft.Parent().SpanID()).To(Equal(turnSpan.SpanContext().SpanID()))
		})

		It("uses the chat span name for Chat", func() {
			newService(nil).Chat(ctx, service.TurnRequest{Question: "fap"})

			Expect(spanNamed(telemetry.TurnSpanName("chat"))).NotTo(BeNil())
		})
	})

	Describe("Chat", func() {
		It("renders the structured payload by default", func() {
			res := newService(nil).Chat(ctx, service.TurnRequest{Question: "fap"})

			Expect(res.Reply).To(ContainSubstring(render.HeadingAdvice))
			Expect(res.Reply).To(ContainSubstring("1. " + fallback.FAPTriageQuestions[0]))
			Expect(res.Reply).To(Equal(guardrail.Normalize(res.Reply)))
		})

		It("uses a single free-text call in text mode", func() {
			cfg.Pipeline.ReplyMode = config.ReplyModeText
			client := llmtest.New(llmtest.Reply("### Ce que j'ai compris   \nTon *FAP* sature.\n\n\n\nFais le [diagnostic](https://x.test/diagnostic-fap)."))

			res := newService(client).Chat(ctx, service.TurnRequest{Question: "mon fap"})

			Expect(client.Calls()).To(Equal(1))
			Expect(client.Requests()[0].JSON).To(BeFalse())
			Expect(res.Source).To(Equal(string(gateway.SourceModel)))
			Expect(res.Reply).To(Equal("### Ce que j'ai compris\nTon FAP sature.\n\nFais le diagnostic."))
			Expect(res.NextAction.Type).To(Equal(model.NextActionFAPTriage))
		})

		It("falls back to the Markdown reply in text mode", func() {
			cfg.Pipeline.ReplyMode = config.ReplyModeText
			res := newService(llmtest.New(llmtest.Fail(errors.New("503")))).Chat(ctx, service.TurnRequest{Question: "recette de cuisine"})

			Expect(res.Source).To(Equal(string(gateway.SourceFallback)))
			Expect(res.Reply).To(Equal(guardrail.Normalize(fb.Reply(model.CategoryDIAG, true))))
		})
	})

	It("picks up a reloaded prompt version on the next turn", func() {
		next := testConfig()
		next.Pipeline.PromptVersion = "fap-diag-2026.1"
		holder := config.NewHolder(cfg, func() (config.Config, error) { return next, nil })
		svc := service.NewTurnService(holder, nil, rec)

		Expect(svc.Analyze(ctx, service.TurnRequest{Question: "fap"}).PromptVersion).To(Equal(prompt.DefaultVersion))
		_, err := holder.Reload()
		Expect(err).NotTo(HaveOccurred())
		Expect(svc.Analyze(ctx, service.TurnRequest{Question: "fap"}).PromptVersion).To(Equal("fap-diag-2026.1"))
	})
})
