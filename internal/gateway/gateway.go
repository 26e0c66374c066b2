// Package gateway wraps the model call with a two-pass JSON contract:
// one draft, at most one repair, and the fallback payload for everything else.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"basegraph.app/triage/common/llm"
	"basegraph.app/triage/common/logger"
	telemetry "basegraph.app/triage/common/otel"
	"basegraph.app/triage/internal/contract"
	"basegraph.app/triage/internal/fallback"
	"basegraph.app/triage/internal/model"
	"go.opentelemetry.io/otel/trace"
)

var ErrModelUnavailable = errors.New("model unavailable")

// Source records which path produced the payload.
type Source string

const (
	SourceModel    Source = "model"
	SourceRepaired Source = "repaired"
	SourceFallback Source = "fallback"
)

// State is a node of the coercion state machine.
type State string

const (
	StateDraft    State = "draft"
	StateParse    State = "parse"
	StateValidate State = "validate"
	StateRepair   State = "repair"
	StateFinal    State = "final"
	StateFallback State = "fallback"
)

// MaxCalls bounds model round-trips per turn: draft plus one repair.
const MaxCalls = 2

const contractInstruction = `Réponds UNIQUEMENT avec un objet JSON conforme au schéma ci-dessous.
Aucun texte avant ou après, pas de bloc de code, aucune propriété hors schéma.
Champs obligatoires : stage, title, summary, risk, cta (avec label et url).`

const repairInstruction = `You are a strict JSON validator. Convert the draft below into one valid JSON object matching the schema. Output the JSON object only, no other text.`

// Recorder receives gateway events. metrics.Metrics implements it.
type Recorder interface {
	ModelCall(kind string, err error)
	GatewayOutcome(source Source, reason string)
}

type Options struct {
	Temperature float64
	MaxTokens   int
	CallTimeout time.Duration
}

type Request struct {
	Category     model.Category
	Triage       bool
	SystemPrompt string
	Conversation []model.ConversationTurn
	Question     string
}

type Result struct {
	Payload model.ResponsePayload
	Source  Source
	Calls   int
	Trail   []State
	Err     error // last failure seen, nil when the draft was valid
}

type Gateway struct {
	client   llm.Client
	fallback *fallback.Generator
	recorder Recorder
	opts     Options
}

// New builds a gateway. A nil client makes every turn take the fallback path.
func New(client llm.Client, fb *fallback.Generator, recorder Recorder, opts Options) *Gateway {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Gateway{client: client, fallback: fb, recorder: recorder, opts: opts}
}

// WithOptions returns a copy using opts, for hot-reloaded settings.
func (g *Gateway) WithOptions(opts Options) *Gateway {
	cp := *g
	cp.opts = opts
	return &cp
}

// run holds the state of one pass through the machine.
type run struct {
	req      Request
	raw      string
	payload  model.ResponsePayload
	repaired bool
	calls    int
	trail    []State
	err      error
}

// Run never returns an error: every failing edge ends in StateFallback.
func (g *Gateway) Run(ctx context.Context, req Request) Result {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "triage.gateway"})
	r := &run{req: req}

	state := StateDraft
	for state != StateFinal && state != StateFallback {
		r.trail = append(r.trail, state)
		state = g.step(ctx, r, state)
	}
	r.trail = append(r.trail, state)

	if state == StateFallback {
		reason := "unknown"
		if r.err != nil {
			reason = failureReason(r.err)
		}
		slog.WarnContext(ctx, "gateway falling back",
			"calls", r.calls,
			"reason", reason,
			"error", r.err)
		g.recorder.GatewayOutcome(SourceFallback, reason)
		return Result{
			Payload: g.fallback.Payload(req.Category, req.Triage),
			Source:  SourceFallback,
			Calls:   r.calls,
			Trail:   r.trail,
			Err:     r.err,
		}
	}

	source := SourceModel
	if r.repaired {
		source = SourceRepaired
	}
	g.recorder.GatewayOutcome(source, "")
	return Result{Payload: r.payload, Source: source, Calls: r.calls, Trail: r.trail, Err: r.err}
}

func (g *Gateway) step(ctx context.Context, r *run, state State) State {
	switch state {
	case StateDraft:
		raw, err := g.call(ctx, r, "draft", g.draftMessages(r.req), true)
		if err != nil {
			r.err = err
			return StateFallback
		}
		r.raw = raw
		return StateParse

	case StateParse:
		p, err := parse(r.raw)
		if err != nil {
			r.err = err
			return g.invalid(ctx, r)
		}
		r.payload = p
		return StateValidate

	case StateValidate:
		if err := contract.Validate(r.payload); err != nil {
			r.err = err
			return g.invalid(ctx, r)
		}
		return StateFinal

	case StateRepair:
		r.repaired = true
		raw, err := g.call(ctx, r, "repair", repairMessages(r.raw), true)
		if err != nil {
			r.err = err
			return StateFallback
		}
		r.raw = raw
		return StateParse
	}

	r.err = fmt.Errorf("unexpected gateway state %q", state)
	return StateFallback
}

// invalid routes a parse or validation failure: repair once, then give up.
func (g *Gateway) invalid(ctx context.Context, r *run) State {
	if r.repaired || r.calls >= MaxCalls {
		return StateFallback
	}
	slog.InfoContext(ctx, "draft violates contract, repairing",
		"error", r.err,
		"draft", logger.Truncate(r.raw, 300))
	return StateRepair
}

func parse(raw string) (model.ResponsePayload, error) {
	p, strictErr := contract.ParseStrict(raw)
	if strictErr == nil {
		return p, nil
	}
	p, err := contract.ParseLenient(raw)
	if err != nil {
		return model.ResponsePayload{}, fmt.Errorf("%w: %w", contract.ErrContractViolation, errors.Join(strictErr, err))
	}
	return p, nil
}

// call performs one bounded model round-trip. Panics from the provider SDK
// are converted to errors so nothing escapes the gateway.
func (g *Gateway) call(ctx context.Context, r *run, kind string, messages []llm.Message, jsonMode bool) (content string, err error) {
	if g.client == nil {
		err = ErrModelUnavailable
		g.recorder.ModelCall(kind, err)
		return "", err
	}
	r.calls++

	sc := logger.StartSpan(ctx, telemetry.ModelCallSpanName(kind),
		trace.WithAttributes(telemetry.AttrCallKind.String(kind)))
	defer sc.End()
	ctx = sc.Context()

	if g.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.CallTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: provider panic: %v", ErrModelUnavailable, rec)
		}
		if err != nil {
			sc.RecordError(err)
		}
		g.recorder.ModelCall(kind, err)
	}()

	resp, err := g.client.Complete(ctx, llm.CompletionRequest{
		Messages:    messages,
		MaxTokens:   g.opts.MaxTokens,
		Temperature: llm.Temp(g.opts.Temperature),
		JSON:        jsonMode,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s call: %w", ErrModelUnavailable, kind, err)
	}
	return resp.Content, nil
}

// Text is the plain-reply flow: one free-text call, the Markdown fallback
// when it fails or comes back blank.
func (g *Gateway) Text(ctx context.Context, req Request) (string, Source) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "triage.gateway"})
	r := &run{req: req}

	messages := append([]llm.Message{{Role: llm.RoleSystem, Content: req.SystemPrompt}}, conversation(req.Conversation, req.Question)...)
	content, err := g.call(ctx, r, "text", messages, false)
	if err == nil && strings.TrimSpace(content) == "" {
		err = llm.ErrEmptyCompletion
	}
	if err != nil {
		reason := failureReason(err)
		slog.WarnContext(ctx, "text reply falling back", "reason", reason, "error", err)
		g.recorder.GatewayOutcome(SourceFallback, reason)
		return g.fallback.Reply(req.Category, req.Triage), SourceFallback
	}

	g.recorder.GatewayOutcome(SourceModel, "")
	return content, SourceModel
}

func (g *Gateway) draftMessages(req Request) []llm.Message {
	system := req.SystemPrompt + "\n\n" + contractInstruction + "\n\nSchéma JSON :\n" + contract.SchemaText()
	return append([]llm.Message{{Role: llm.RoleSystem, Content: system}}, conversation(req.Conversation, req.Question)...)
}

func repairMessages(draft string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: repairInstruction},
		{Role: llm.RoleUser, Content: "Schema:\n" + contract.SchemaText() + "\n\nDraft:\n" + draft},
	}
}

// conversation keeps caller user/assistant turns (caller system turns are
// dropped) and appends the question unless it is already the last user turn.
func conversation(turns []model.ConversationTurn, question string) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns)+1)
	for _, t := range turns {
		switch t.Role {
		case model.RoleUser:
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: t.Content})
		case model.RoleAssistant:
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: t.Content})
		}
	}
	if question != "" && (len(msgs) == 0 || msgs[len(msgs)-1].Role != llm.RoleUser || msgs[len(msgs)-1].Content != question) {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: question})
	}
	return msgs
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, llm.ErrEmptyCompletion):
		return "empty_output"
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, contract.ErrContractViolation):
		return "contract_violation"
	default:
		return "error"
	}
}

type nopRecorder struct{}

func (nopRecorder) ModelCall(string, error)       {}
func (nopRecorder) GatewayOutcome(Source, string) {}
