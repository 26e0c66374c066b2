package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	OTel        OTelConfig
	LLM         LLMConfig
	Pipeline    PipelineConfig
	Cache       CacheConfig
	Env         string
	Port        string
	AdminAPIKey string
	NodeID      int64 // snowflake node for turn ids, unique per replica
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
	SampleRatio    float64 // fraction of root turns traced; child spans follow the parent
}

type LLMConfig struct {
	Provider    string // "openai" or "anthropic"
	APIKey      string
	BaseURL     string // Optional: for custom endpoints
	Model       string
	MaxTokens   int
	Temperature float64
	CallTimeout time.Duration
}

// Reply modes select how /chat produces its Markdown reply.
const (
	ReplyModeStructured = "structured"
	ReplyModeText       = "text"
)

// MaxNodeID is the largest node id a 10-bit snowflake node field holds.
const MaxNodeID = 1023

type PipelineConfig struct {
	ReplyMode     string
	PromptVersion string // empty = prompt package default
	CTABaseURL    string
}

type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
}

// Load loads configuration from environment variables.
// In development, it first loads a .env file if one exists.
func Load() (Config, error) {
	if getEnv("TRIAGE_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:         getEnv("TRIAGE_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
		NodeID:      int64(getEnvInt("TRIAGE_NODE_ID", 1)),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "triage"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			SampleRatio:    getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
		LLM: LLMConfig{
			Provider:    getEnv("LLM_PROVIDER", "openai"),
			APIKey:      getEnv("LLM_API_KEY", ""),
			BaseURL:     getEnv("LLM_BASE_URL", ""),
			Model:       getEnv("LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 900),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0),
			CallTimeout: getEnvDuration("LLM_CALL_TIMEOUT", 12*time.Second),
		},
		Pipeline: PipelineConfig{
			ReplyMode:     getEnv("REPLY_MODE", ReplyModeStructured),
			PromptVersion: getEnv("PROMPT_VERSION", ""),
			CTABaseURL:    getEnv("CTA_BASE_URL", "https://www.re-fap.fr"),
		},
		Cache: CacheConfig{
			RedisURL: getEnv("REDIS_URL", ""),
			TTL:      getEnvDuration("CACHE_TTL", 6*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch c.Pipeline.ReplyMode {
	case ReplyModeStructured, ReplyModeText:
	default:
		return fmt.Errorf("REPLY_MODE must be %q or %q, got %q", ReplyModeStructured, ReplyModeText, c.Pipeline.ReplyMode)
	}

	if c.LLM.Provider != "openai" && c.LLM.Provider != "anthropic" {
		return fmt.Errorf("LLM_PROVIDER must be openai or anthropic, got %q", c.LLM.Provider)
	}

	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be within [0, 2]")
	}

	if c.NodeID < 0 || c.NodeID > MaxNodeID {
		return fmt.Errorf("TRIAGE_NODE_ID must be within [0, %d]", MaxNodeID)
	}

	if c.OTel.SampleRatio < 0 || c.OTel.SampleRatio > 1 {
		return fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be within [0, 1]")
	}

	if c.Pipeline.CTABaseURL == "" {
		return fmt.Errorf("CTA_BASE_URL is required")
	}

	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

func (c CacheConfig) Enabled() bool {
	return c.RedisURL != "" && c.TTL > 0
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
