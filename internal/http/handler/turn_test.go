package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/triage/internal/http/dto"
	"basegraph.app/triage/internal/http/handler"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/service"
)

var _ = Describe("TurnHandler", func() {
	var (
		router *gin.Engine
		svc    *mockTurnService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockTurnService{}
		h := handler.NewTurnHandler(svc)
		router.POST("/api/v1/chat", h.Chat)
		router.POST("/api/v1/analyze", h.Analyze)
	})

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	Describe("Chat", func() {
		It("returns the reply, next action and prompt version", func() {
			var got service.TurnRequest
			svc.chatFn = func(_ context.Context, req service.TurnRequest) service.TurnResult {
				got = req
				return service.TurnResult{
					Reply:         "### Ce que j'ai compris\nTon FAP.",
					NextAction:    model.NextAction{Type: model.NextActionFAPTriage, CTAs: []model.CTA{{Label: "Diagnostic", URL: "https://x.test/diagnostic-fap"}}},
					PromptVersion: "fap-diag-2025.3",
					TurnID:        1234567890123456789,
				}
			}

			w := post("/api/v1/chat", `{"question":"fap","historique":"Utilisateur : bonjour"}`)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(got.Question).To(Equal("fap"))
			Expect(got.History).To(Equal("Utilisateur : bonjour"))

			var resp dto.ChatResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.NextAction.Type).To(Equal(model.NextActionFAPTriage))
			Expect(resp.NextAction.CTAs).To(HaveLen(1))
			Expect(resp.PromptVersion).To(Equal("fap-diag-2025.3"))
			Expect(resp.TurnID).To(Equal("1234567890123456789"))
			Expect(w.Body.String()).To(ContainSubstring(`"nextAction":{"type":"FAP_TRIAGE"`))
		})

		It("accepts structured messages without a question", func() {
			called := false
			svc.chatFn = func(_ context.Context, req service.TurnRequest) service.TurnResult {
				called = true
				Expect(req.Messages).To(HaveLen(1))
				return service.TurnResult{Reply: "ok"}
			}

			w := post("/api/v1/chat", `{"messages":[{"role":"user","content":"voyant moteur"}]}`)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(called).To(BeTrue())
		})

		It("returns 400 on an empty turn", func() {
			w := post("/api/v1/chat", `{"question":"   "}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 400 on malformed JSON", func() {
			w := post("/api/v1/chat", `{"question":`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 400 on an oversized question", func() {
			w := post("/api/v1/chat", `{"question":"`+strings.Repeat("a", 4001)+`"}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Analyze", func() {
		It("returns the payload with source and version headers", func() {
			svc.analyzeFn = func(_ context.Context, _ service.TurnRequest) service.TurnResult {
				return service.TurnResult{
					Source:        "guardrail",
					PromptVersion: "fap-diag-2025.3",
					TurnID:        42,
					Payload: model.ResponsePayload{
						Stage:   model.StageDiagnosis,
						Title:   "Ton FAP est probablement colmaté",
						Summary: "Signes typiques.",
						Risk:    model.RiskModerate,
						CTA:     model.CTA{Label: "Nettoyage", URL: "https://x.test/nettoyage-fap"},
					},
				}
			}

			w := post("/api/v1/analyze", `{"question":"voyant fap allumé, fumée noire, perte de puissance"}`)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get(handler.HeaderTurnSource)).To(Equal("guardrail"))
			Expect(w.Header().Get(handler.HeaderPromptVersion)).To(Equal("fap-diag-2025.3"))
			Expect(w.Header().Get(handler.HeaderTurnID)).To(Equal("42"))

			var payload model.ResponsePayload
			Expect(json.Unmarshal(w.Body.Bytes(), &payload)).To(Succeed())
			Expect(payload.Risk).To(Equal(model.RiskModerate))
			Expect(payload.CTA.URL).To(Equal("https://x.test/nettoyage-fap"))
		})
	})
})
