// Package llmtest provides a scripted llm.Client for failure-injection tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"basegraph.app/triage/common/llm"
)

var ErrScriptExhausted = errors.New("llmtest: no scripted step left")

// Step is one scripted reply. Exactly one of Content, Err, Panic or Block is meaningful.
type Step struct {
	Content string
	Err     error
	Panic   any
	Block   bool // wait for ctx to be done and return its error
}

// Scripted replays Steps in order and records every request it receives.
type Scripted struct {
	mu       sync.Mutex
	steps    []Step
	requests []llm.CompletionRequest
}

func New(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

func Reply(content string) Step { return Step{Content: content} }
func Fail(err error) Step       { return Step{Err: err} }

func (s *Scripted) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	if len(s.steps) == 0 {
		s.mu.Unlock()
		return nil, ErrScriptExhausted
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	s.mu.Unlock()

	switch {
	case step.Panic != nil:
		panic(step.Panic)
	case step.Block:
		<-ctx.Done()
		return nil, ctx.Err()
	case step.Err != nil:
		return nil, step.Err
	}
	return &llm.Completion{Content: step.Content, FinishReason: "stop"}, nil
}

func (s *Scripted) Model() string {
	return "scripted"
}

// Requests returns a copy of the requests received so far.
func (s *Scripted) Requests() []llm.CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.CompletionRequest(nil), s.requests...)
}

// Calls is the number of Complete invocations.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
