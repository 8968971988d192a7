package providers

import "context"

// Provider is the interface every LLM backend implements.
type Provider interface {
	// Chat sends messages to the LLM and returns the complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ChatStream sends messages and returns a channel of ChatDelta the
	// caller ranges over. The channel is closed after a delta with
	// Usage set (normal end) or a delta with Err set (stream aborted);
	// ctx cancellation closes it early with no further deltas.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatDelta, error)

	// DefaultModel returns the provider's default model name.
	DefaultModel() string

	// Name returns the provider identifier (e.g. "anthropic", "openai").
	Name() string
}

// ChatRequest is the input to a Chat/ChatStream call.
type ChatRequest struct {
	Messages []Message              `json:"messages"`
	Tools    []ToolDefinition       `json:"tools,omitempty"`
	Model    string                 `json:"model,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// ChatResponse is the complete result from a non-streaming Chat call.
type ChatResponse struct {
	Content      string     `json:"content"`
	Thinking     string     `json:"thinking,omitempty"` // provider-specific: extended-thinking trace, opaque to the agent loop
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason"` // "stop", "tool_calls", "length"
	Usage        *Usage     `json:"usage,omitempty"`

	// RawAssistantContent preserves the provider's native content-block
	// encoding (e.g. Anthropic's tool_use/thinking blocks) so it can be
	// replayed verbatim as history on the next turn instead of being
	// reconstructed from the normalized fields above.
	RawAssistantContent []byte `json:"-"`
}

// DeltaKind discriminates the tagged variants of ChatDelta.
type DeltaKind string

const (
	DeltaTextChunk     DeltaKind = "text_chunk"
	DeltaToolCallStart DeltaKind = "tool_call_start"
	DeltaToolCallArg   DeltaKind = "tool_call_arg"
	DeltaToolCallEnd   DeltaKind = "tool_call_end"
	DeltaUsageReport   DeltaKind = "usage_report"
	DeltaProviderError DeltaKind = "provider_error"
)

// ChatDelta is one item of a ChatStream's lazy sequence. Exactly one of
// the payload fields is populated, selected by Kind.
type ChatDelta struct {
	Kind DeltaKind `json:"kind"`

	Text     string `json:"text,omitempty"`     // DeltaTextChunk
	Thinking string `json:"thinking,omitempty"` // DeltaTextChunk: provider-specific thinking-trace fragment

	ToolCallID   string                 `json:"tool_call_id,omitempty"`   // DeltaToolCallStart/Arg/End
	ToolCallName string                 `json:"tool_call_name,omitempty"` // DeltaToolCallStart
	ArgChunk     string                 `json:"arg_chunk,omitempty"`      // DeltaToolCallArg: raw JSON fragment
	Arguments    map[string]interface{} `json:"arguments,omitempty"`      // DeltaToolCallEnd: fully parsed

	Usage *Usage `json:"usage,omitempty"` // DeltaUsageReport

	Err         error `json:"-"`                    // DeltaProviderError
	Recoverable bool  `json:"recoverable,omitempty"` // DeltaProviderError: caller may retry/fallback
}

// ThinkingCapable is implemented by providers whose models can be asked
// for an extended-thinking trace. Checked via a type assertion on
// Provider rather than folded into the interface itself, since not every
// provider/model combination supports it.
type ThinkingCapable interface {
	SupportsThinking() bool
}

// ImageContent is a base64-encoded image for vision-capable models.
type ImageContent struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Message is one turn of conversation history.
type Message struct {
	Role       string         `json:"role"` // "system", "user", "assistant", "tool"
	Content    string         `json:"content"`
	Images     []ImageContent `json:"images,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`

	// RawAssistantContent, when set on an assistant message, replays the
	// provider's native content blocks verbatim instead of reconstructing
	// them from Content/ToolCalls — needed to pass Anthropic thinking
	// blocks (with their signature) back on the next turn.
	RawAssistantContent []byte `json:"-"`
}

// ToolCall is a tool invocation requested by the LLM.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`

	// Metadata carries provider-specific passback data that must survive
	// round-tripping through session history (e.g. Gemini's
	// "thought_signature").
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ToolDefinition describes a tool available to the LLM.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function ToolFunctionSchema `json:"function"`
}

// ToolFunctionSchema is the JSON schema for a function tool.
type ToolFunctionSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Usage tracks token consumption for one LLM call.
type Usage struct {
	PromptTokens        int `json:"prompt_tokens"`
	CompletionTokens    int `json:"completion_tokens"`
	TotalTokens         int `json:"total_tokens"`
	CacheCreationTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadTokens     int `json:"cache_read_input_tokens,omitempty"`
	ThinkingTokens      int `json:"thinking_tokens,omitempty"`
}
