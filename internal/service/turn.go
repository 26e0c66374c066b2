package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"basegraph.app/triage/common/id"
	"basegraph.app/triage/common/llm"
	"basegraph.app/triage/common/logger"
	telemetry "basegraph.app/triage/common/otel"
	"basegraph.app/triage/core/config"
	"basegraph.app/triage/internal/classifier"
	"basegraph.app/triage/internal/cta"
	"basegraph.app/triage/internal/fallback"
	"basegraph.app/triage/internal/gateway"
	"basegraph.app/triage/internal/guardrail"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/prompt"
	"basegraph.app/triage/internal/render"
	"basegraph.app/triage/internal/triage"
	"go.opentelemetry.io/otel/trace"
)

// SourceGuardrail marks a payload replaced or escalated by the guardrail.
const SourceGuardrail = "guardrail"

// TurnRequest is one inbound turn. History is the caller's "historique";
// Messages is the optional structured form of the same conversation.
type TurnRequest struct {
	Question string
	History  string
	Messages []model.ConversationTurn
}

type TurnResult struct {
	Reply         string
	NextAction    model.NextAction
	PromptVersion string
	TurnID        int64
	Source        string
	Category      model.Category
	Triage        bool
	Payload       model.ResponsePayload
}

// Recorder receives pipeline events; metrics.Metrics implements it.
type Recorder interface {
	gateway.Recorder
	GuardrailDecision(d guardrail.Decision)
	OutOfDomain()
	Turn(category model.Category, triage bool, source string, elapsed time.Duration)
}

type TurnService interface {
	// Chat returns the Markdown reply. REPLY_MODE=text switches it to the
	// single free-text model call.
	Chat(ctx context.Context, req TurnRequest) TurnResult
	// Analyze always runs the structured path and carries the payload.
	Analyze(ctx context.Context, req TurnRequest) TurnResult
}

type turnService struct {
	cfg      *config.Holder
	client   llm.Client
	recorder Recorder
}

// NewTurnService wires the pipeline. client may be nil, in which case every
// turn is answered by the fallback generator.
func NewTurnService(cfg *config.Holder, client llm.Client, recorder Recorder) TurnService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &turnService{cfg: cfg, client: client, recorder: recorder}
}

// turn carries per-request state. Collaborators are rebuilt from the
// current config so a reload takes effect on the next turn.
type turn struct {
	ctx      context.Context
	span     *logger.SpanContext
	id       int64
	started  time.Time
	cfg      config.Config
	ctas     *cta.Registry
	fallback *fallback.Generator
	guard    *guardrail.Guardrail
	gateway  *gateway.Gateway

	question string
	history  string
	messages []model.ConversationTurn
	message  string
	category model.Category
	triage   bool
	system   string
	version  string
}

func (s *turnService) Chat(ctx context.Context, req TurnRequest) (result TurnResult) {
	t := s.newTurn(ctx, "chat")
	defer s.finish(t, &result)

	s.prepare(t, req)
	if t.cfg.Pipeline.ReplyMode == config.ReplyModeText {
		return s.text(t)
	}
	return s.structured(t)
}

func (s *turnService) Analyze(ctx context.Context, req TurnRequest) (result TurnResult) {
	t := s.newTurn(ctx, "analyze")
	defer s.finish(t, &result)

	s.prepare(t, req)
	return s.structured(t)
}

func (s *turnService) newTurn(ctx context.Context, entry string) *turn {
	cfg := s.cfg.Current()
	registry := cta.NewRegistry(cfg.Pipeline.CTABaseURL)
	fb := fallback.New(registry)
	turnID := id.New()
	version := prompt.Version(cfg.Pipeline.PromptVersion)
	sc := logger.StartSpan(ctx, telemetry.TurnSpanName(entry),
		trace.WithAttributes(telemetry.TurnStart(turnID, version, cfg.Pipeline.ReplyMode)...))

	return &turn{
		ctx:      logger.WithLogFields(sc.Context(), logger.LogFields{TurnID: &turnID, Component: "triage.service"}),
		span:     sc,
		id:       turnID,
		started:  time.Now(),
		cfg:      cfg,
		ctas:     registry,
		fallback: fb,
		guard:    guardrail.New(fb),
		gateway: gateway.New(s.client, fb, s.recorder, gateway.Options{
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			CallTimeout: cfg.LLM.CallTimeout,
		}),
		category: model.CategoryDIAG,
		triage:   true,
		version:  version,
	}
}

// prepare runs classify, clamp, triage and prompt building.
func (s *turnService) prepare(t *turn, req TurnRequest) {
	t.question = strings.TrimSpace(req.Question)
	if t.question == "" {
		t.question = strings.TrimSpace(model.LastUserMessage(req.Messages))
	}
	t.history = req.History
	if strings.TrimSpace(t.history) == "" {
		t.history = historyFrom(req.Messages, t.question)
	}
	t.messages = req.Messages
	t.message = t.question

	raw, rule := classifier.ClassifyWithRule(t.question)
	if raw == model.CategoryOOD {
		s.recorder.OutOfDomain()
		slog.InfoContext(t.ctx, "question out of domain, clamping", "clamped_to", classifier.Clamp(raw))
	}
	t.category = classifier.Clamp(raw)
	t.triage = triage.NeedsTriage(t.category, t.question, t.history)
	t.system = prompt.Build(t.category, t.triage, t.history)

	t.ctx = logger.WithLogFields(t.ctx, logger.LogFields{
		Category: logger.Ptr(string(t.category)),
		Triage:   &t.triage,
	})
	slog.DebugContext(t.ctx, "turn classified",
		"rule", rule,
		"question_len", utf8.RuneCountInString(t.question),
		"history_len", utf8.RuneCountInString(t.history))
}

func (s *turnService) structured(t *turn) TurnResult {
	res := t.gateway.Run(t.ctx, s.gatewayRequest(t))
	source := string(res.Source)

	payload, decision := t.guard.Override(t.ctx, t.category, t.message, res.Payload)
	s.recorder.GuardrailDecision(decision)
	switch decision {
	case guardrail.DecisionGenericTriage, guardrail.DecisionInvalidTriage:
		t.triage = true
		source = SourceGuardrail
	case guardrail.DecisionFAPSignals:
		t.category = model.CategoryFAP
		t.triage = false
		source = SourceGuardrail
	}

	payload, escalated := t.guard.Escalate(t.message, payload)
	if escalated {
		s.recorder.GuardrailDecision(guardrail.DecisionEscalate)
		slog.WarnContext(t.ctx, "critical symptom reported, risk escalated")
		source = SourceGuardrail
	}

	reply := guardrail.Normalize(guardrail.Sanitize(render.Markdown(payload), t.category, t.triage))
	return s.result(t, reply, source, payload)
}

func (s *turnService) text(t *turn) TurnResult {
	content, source := t.gateway.Text(t.ctx, s.gatewayRequest(t))
	reply := guardrail.Normalize(guardrail.Sanitize(content, t.category, t.triage))
	return s.result(t, reply, string(source), model.ResponsePayload{})
}

func (s *turnService) gatewayRequest(t *turn) gateway.Request {
	return gateway.Request{
		Category:     t.category,
		Triage:       t.triage,
		SystemPrompt: t.system,
		Question:     t.question,
		Conversation: t.messages,
	}
}

func (s *turnService) result(t *turn, reply, source string, payload model.ResponsePayload) TurnResult {
	return TurnResult{
		Reply: reply,
		NextAction: model.NextAction{
			Type: model.NextActionTypeFor(t.category, t.triage),
			CTAs: t.ctas.CTAs(t.category, t.triage),
		},
		PromptVersion: t.version,
		TurnID:        t.id,
		Source:        source,
		Category:      t.category,
		Triage:        t.triage,
		Payload:       payload,
	}
}

// finish recovers a panic anywhere in the pipeline into the fallback result
// and records the turn.
func (s *turnService) finish(t *turn, result *TurnResult) {
	if r := recover(); r != nil {
		slog.ErrorContext(t.ctx, "turn panicked, serving fallback",
			"panic", fmt.Sprint(r),
			"stack", string(debug.Stack()))
		payload := t.fallback.Payload(t.category, t.triage)
		reply := guardrail.Normalize(t.fallback.Reply(t.category, t.triage))
		*result = s.result(t, reply, string(gateway.SourceFallback), payload)
	}

	t.span.Span().SetAttributes(telemetry.TurnOutcome(string(t.category), t.triage, result.Source)...)
	defer t.span.End()

	elapsed := time.Since(t.started)
	ctx := logger.WithLogFields(t.ctx, logger.LogFields{Source: &result.Source})
	slog.InfoContext(ctx, "turn completed",
		"next_action", result.NextAction.Type,
		"duration_ms", elapsed.Milliseconds())
	s.safeRecordTurn(t, result.Source, elapsed)
}

func (s *turnService) safeRecordTurn(t *turn, source string, elapsed time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(t.ctx, "recording turn metrics panicked", "panic", fmt.Sprint(r))
		}
	}()
	s.recorder.Turn(t.category, t.triage, source, elapsed)
}

type nopRecorder struct{}

func (nopRecorder) ModelCall(string, error)                          {}
func (nopRecorder) GatewayOutcome(gateway.Source, string)            {}
func (nopRecorder) GuardrailDecision(guardrail.Decision)             {}
func (nopRecorder) OutOfDomain()                                     {}
func (nopRecorder) Turn(model.Category, bool, string, time.Duration) {}
