package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"basegraph.app/triage/common/id"
	"basegraph.app/triage/internal/http/dto"
	"basegraph.app/triage/internal/service"
)

// Response headers set by Analyze.
const (
	HeaderTurnSource    = "X-Turn-Source"
	HeaderPromptVersion = "X-Prompt-Version"
	HeaderTurnID        = "X-Turn-Id"
)

type TurnHandler struct {
	service service.TurnService
}

func NewTurnHandler(service service.TurnService) *TurnHandler {
	return &TurnHandler{service: service}
}

// Chat answers with the Markdown reply and the CTA buttons.
func (h *TurnHandler) Chat(c *gin.Context) {
	req, ok := bindTurn(c)
	if !ok {
		return
	}

	res := h.service.Chat(c.Request.Context(), req.ToService())
	c.JSON(http.StatusOK, dto.NewChatResponse(res))
}

// Analyze answers with the structured payload itself.
func (h *TurnHandler) Analyze(c *gin.Context) {
	req, ok := bindTurn(c)
	if !ok {
		return
	}

	res := h.service.Analyze(c.Request.Context(), req.ToService())
	c.Header(HeaderTurnSource, res.Source)
	c.Header(HeaderPromptVersion, res.PromptVersion)
	c.Header(HeaderTurnID, id.Format(res.TurnID))
	c.JSON(http.StatusOK, res.Payload)
}

func bindTurn(c *gin.Context) (dto.TurnRequest, bool) {
	var req dto.TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(c.Request.Context(), "invalid turn request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}
	if strings.TrimSpace(req.Question) == "" && len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question or messages is required"})
		return req, false
	}
	return req, true
}
