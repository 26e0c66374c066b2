package handler_test

import (
	"context"

	"basegraph.app/triage/internal/service"
)

type mockTurnService struct {
	chatFn    func(ctx context.Context, req service.TurnRequest) service.TurnResult
	analyzeFn func(ctx context.Context, req service.TurnRequest) service.TurnResult
}

func (m *mockTurnService) Chat(ctx context.Context, req service.TurnRequest) service.TurnResult {
	if m.chatFn != nil {
		return m.chatFn(ctx, req)
	}
	return service.TurnResult{}
}

func (m *mockTurnService) Analyze(ctx context.Context, req service.TurnRequest) service.TurnResult {
	if m.analyzeFn != nil {
		return m.analyzeFn(ctx, req)
	}
	return service.TurnResult{}
}
