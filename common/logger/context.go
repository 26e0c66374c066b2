package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// The turn orchestrator sets them once per request so every log line of the pipeline
// (classifier, gateway, guardrail) carries the same turn context.
type LogFields struct {
	TurnID    *int64  // Snowflake id of the current turn
	Category  *string // Clamped category (FAP, DIAG)
	Triage    *bool   // Triage flag computed for this turn
	Source    *string // Payload origin (model, repaired, fallback, guardrail)
	Component string  // Component name (OTel semantic convention style, e.g., "triage.gateway")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.TurnID != nil {
		result.TurnID = new.TurnID
	}
	if new.Category != nil {
		result.Category = new.Category
	}
	if new.Triage != nil {
		result.Triage = new.Triage
	}
	if new.Source != nil {
		result.Source = new.Source
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{TurnID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
// Useful for logging potentially long strings like model drafts.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
