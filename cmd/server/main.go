package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"basegraph.app/triage/common/id"
	"basegraph.app/triage/common/llm"
	"basegraph.app/triage/common/logger"
	"basegraph.app/triage/common/otel"
	"basegraph.app/triage/core/config"
	"basegraph.app/triage/internal/cache"
	"basegraph.app/triage/internal/http/middleware"
	httprouter "basegraph.app/triage/internal/http/router"
	"basegraph.app/triage/internal/metrics"
	"basegraph.app/triage/internal/prompt"
	"basegraph.app/triage/internal/service"
)

const maxBodyBytes = 256 << 10

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg, prompt.Version(cfg.Pipeline.PromptVersion))
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry.Enabled() {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "triage starting",
		"env", cfg.Env,
		"reply_mode", cfg.Pipeline.ReplyMode,
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"node_id", cfg.NodeID)
	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	client, closeClient := newModelClient(ctx, cfg, m)
	defer closeClient()

	holder := config.NewHolder(cfg, nil)
	turns := service.NewTurnService(holder, client, m)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, holder, turns)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout(cfg.LLM.CallTimeout),
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if next, err := holder.Reload(); err != nil {
				slog.ErrorContext(ctx, "config reload failed", "error", err)
			} else {
				slog.InfoContext(ctx, "config reloaded",
					"reply_mode", next.Pipeline.ReplyMode,
					"prompt_version", next.Pipeline.PromptVersion)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	signal.Stop(hup)

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

// newModelClient returns nil when no API key is configured: every turn is
// then served by the fallback generator.
func newModelClient(ctx context.Context, cfg config.Config, m *metrics.Metrics) (llm.Client, func()) {
	noop := func() {}
	if !cfg.LLM.Enabled() {
		slog.WarnContext(ctx, "LLM_API_KEY not set, serving fallback answers only")
		return nil, noop
	}

	client, err := llm.NewClient(llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create LLM client", "error", err)
		os.Exit(1)
	}

	if !cfg.Cache.Enabled() {
		return client, noop
	}

	redisOpts, err := redis.ParseURL(cfg.Cache.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// The cache is optional: lookups against a dead redis count as misses.
		slog.WarnContext(ctx, "redis unreachable, completion cache degraded", "error", err)
	} else {
		slog.InfoContext(ctx, "redis connected", "ttl", cfg.Cache.TTL)
	}

	return cache.New(client, redisClient, cfg.Cache.TTL, m), func() { _ = redisClient.Close() }
}

// writeTimeout leaves room for a draft and a repair call.
func writeTimeout(callTimeout time.Duration) time.Duration {
	return 2*callTimeout + 10*time.Second
}

func setupRouter(cfg config.Config, holder *config.Holder, turns service.TurnService) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger("/health", "/metrics"))
	router.Use(middleware.BodyLimit(maxBodyBytes))

	httprouter.SetupRoutes(router, turns, httprouter.RouterConfig{
		Config:  holder,
		Metrics: promhttp.Handler(),
	})

	return router
}

const banner = `
████████╗██████╗ ██╗ █████╗  ██████╗ ███████╗
╚══██╔══╝██╔══██╗██║██╔══██╗██╔════╝ ██╔════╝
   ██║   ██████╔╝██║███████║██║  ███╗█████╗
   ██║   ██╔══██╗██║██╔══██║██║   ██║██╔══╝
   ██║   ██║  ██║██║██║  ██║╚██████╔╝███████╗
   ╚═╝   ╚═╝  ╚═╝╚═╝╚═╝  ╚═╝ ╚═════╝ ╚══════╝
`
