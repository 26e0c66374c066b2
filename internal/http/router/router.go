package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/triage/core/config"
	"basegraph.app/triage/internal/http/handler"
	"basegraph.app/triage/internal/service"
)

type RouterConfig struct {
	Config  *config.Holder
	Metrics http.Handler // nil disables /metrics
}

func SetupRoutes(router *gin.Engine, turns service.TurnService, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	v1 := router.Group("/api/v1")
	{
		turnHandler := handler.NewTurnHandler(turns)
		TurnRouter(v1, turnHandler)
	}

	adminHandler := handler.NewAdminHandler(cfg.Config)
	AdminRouter(router.Group("/admin"), adminHandler)
}

func TurnRouter(router *gin.RouterGroup, handler *handler.TurnHandler) {
	router.POST("/chat", handler.Chat)
	router.POST("/analyze", handler.Analyze)
}

func AdminRouter(router *gin.RouterGroup, handler *handler.AdminHandler) {
	router.Use(handler.RequireAdminAPIKey())
	router.POST("/reload", handler.Reload)
}
