package dto

import (
	"basegraph.app/triage/common/id"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/service"
)

// TurnRequest is the body of /chat and /analyze. Either question or
// messages must be present.
type TurnRequest struct {
	Question   string                   `json:"question" binding:"max=4000"`
	Historique string                   `json:"historique" binding:"max=20000"`
	Messages   []model.ConversationTurn `json:"messages,omitempty" binding:"max=50"`
}

func (r TurnRequest) ToService() service.TurnRequest {
	return service.TurnRequest{
		Question: r.Question,
		History:  r.Historique,
		Messages: r.Messages,
	}
}

type ChatResponse struct {
	Reply         string           `json:"reply"`
	NextAction    model.NextAction `json:"nextAction"`
	PromptVersion string           `json:"promptVersion"`
	TurnID        string           `json:"turnId"`
}

func NewChatResponse(res service.TurnResult) ChatResponse {
	return ChatResponse{
		Reply:         res.Reply,
		NextAction:    res.NextAction,
		PromptVersion: res.PromptVersion,
		TurnID:        id.Format(res.TurnID),
	}
}

type ReloadResponse struct {
	Status        string `json:"status"`
	ReplyMode     string `json:"replyMode"`
	PromptVersion string `json:"promptVersion"`
	Model         string `json:"model"`
}
