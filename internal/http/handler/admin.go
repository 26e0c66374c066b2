package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"basegraph.app/triage/core/config"
	"basegraph.app/triage/internal/http/dto"
)

type AdminHandler struct {
	config *config.Holder
}

func NewAdminHandler(config *config.Holder) *AdminHandler {
	return &AdminHandler{config: config}
}

// Reload re-reads the environment. A failed reload keeps the running config.
func (h *AdminHandler) Reload(c *gin.Context) {
	ctx := c.Request.Context()

	cfg, err := h.config.Reload()
	if err != nil {
		slog.ErrorContext(ctx, "config reload failed", "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	slog.InfoContext(ctx, "config reloaded",
		"reply_mode", cfg.Pipeline.ReplyMode,
		"prompt_version", cfg.Pipeline.PromptVersion)
	c.JSON(http.StatusOK, dto.ReloadResponse{
		Status:        "reloaded",
		ReplyMode:     cfg.Pipeline.ReplyMode,
		PromptVersion: cfg.Pipeline.PromptVersion,
		Model:         cfg.LLM.Model,
	})
}

// RequireAdminAPIKey middleware checks for valid admin API key. The key is
// read from the current config, so a reload can rotate it.
func (h *AdminHandler) RequireAdminAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := h.config.Current().AdminAPIKey
		if expected == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin API not configured"})
			c.Abort()
			return
		}

		apiKey := c.GetHeader("X-Admin-API-Key")
		if apiKey == "" {
			apiKey = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(expected)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}
