package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SpanType identifies what a span represents in the agent run tree.
type SpanType string

const (
	SpanTypeAgent    SpanType = "agent"
	SpanTypeLLMCall  SpanType = "llm_call"
	SpanTypeToolCall SpanType = "tool_call"
)

// SpanStatus is the terminal outcome of a span.
type SpanStatus string

const (
	SpanStatusCompleted SpanStatus = "completed"
	SpanStatusError      SpanStatus = "error"
)

// SpanLevel mirrors OpenTelemetry's log-severity-style levels for a span.
// Only DEFAULT is produced today; the type exists so a future DEBUG/WARNING
// level doesn't require touching every call site.
type SpanLevel string

const SpanLevelDefault SpanLevel = "DEFAULT"

// SpanData is one recorded span: an LLM call, a tool call, or the agent run
// that parents them. The agent loop builds these after the fact (it already
// knows a span's full start/end by the time it's emitted) and hands them to
// a tracing.Collector, which is free to forward them to OpenTelemetry,
// Postgres, or both.
type SpanData struct {
	ID           uuid.UUID  `json:"id"`
	TraceID      uuid.UUID  `json:"traceId"`
	ParentSpanID *uuid.UUID `json:"parentSpanId,omitempty"`
	AgentID      *uuid.UUID `json:"agentId,omitempty"`

	SpanType SpanType `json:"spanType"`
	Name     string   `json:"name"`

	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	DurationMS int        `json:"durationMs"`

	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`

	ToolName   string `json:"toolName,omitempty"`
	ToolCallID string `json:"toolCallId,omitempty"`

	InputPreview  string `json:"inputPreview,omitempty"`
	OutputPreview string `json:"outputPreview,omitempty"`
	FinishReason  string `json:"finishReason,omitempty"`

	Status SpanStatus `json:"status"`
	Level  SpanLevel  `json:"level"`
	Error  string     `json:"error,omitempty"`

	InputTokens  int `json:"inputTokens,omitempty"`
	OutputTokens int `json:"outputTokens,omitempty"`

	Metadata json.RawMessage `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// GenNewID mints a random span/trace identifier. A thin wrapper so callers
// depend on the store package rather than reaching for google/uuid directly.
func GenNewID() uuid.UUID {
	return uuid.New()
}
