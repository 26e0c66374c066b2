package otel

import (
	"strconv"

	"go.opentelemetry.io/otel/attribute"
)

// TracerName scopes every span the triage pipeline emits.
const TracerName = "basegraph.app/triage"

// Span names. A turn span is the root of one request; model call spans are
// its children, one per Draft, Repair or Text round-trip.
const (
	spanTurn      = "triage.turn"
	spanModelCall = "triage.model"
)

const (
	AttrTurnID        = attribute.Key("triage.turn_id")
	AttrCategory      = attribute.Key("triage.category")
	AttrTriage        = attribute.Key("triage.triage")
	AttrSource        = attribute.Key("triage.source")
	AttrPromptVersion = attribute.Key("triage.prompt_version")
	AttrReplyMode     = attribute.Key("triage.reply_mode")
	AttrCallKind      = attribute.Key("triage.call_kind")
	AttrProvider      = attribute.Key("triage.llm.provider")
	AttrModel         = attribute.Key("triage.llm.model")
	AttrNodeID        = attribute.Key("triage.node_id")
)

// TurnSpanName names the root span of a turn by entry point ("chat", "analyze").
func TurnSpanName(entry string) string {
	return spanTurn + "." + entry
}

// ModelCallSpanName names one provider round-trip ("draft", "repair", "text").
func ModelCallSpanName(kind string) string {
	return spanModelCall + "." + kind
}

// TurnStart is attached when the turn span opens.
func TurnStart(turnID int64, promptVersion, replyMode string) []attribute.KeyValue {
	return []attribute.KeyValue{
		// String form: snowflake ids lose precision in JSON trace viewers.
		AttrTurnID.String(strconv.FormatInt(turnID, 10)),
		AttrPromptVersion.String(promptVersion),
		AttrReplyMode.String(replyMode),
	}
}

// TurnOutcome is attached when the turn span closes, after the guardrail may
// have changed the category or the triage flag.
func TurnOutcome(category string, triage bool, source string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrCategory.String(category),
		AttrTriage.Bool(triage),
		AttrSource.String(source),
	}
}
