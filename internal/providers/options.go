package providers

// Option keys recognized in ChatRequest.Options. Each provider's
// buildRequestBody reads the subset it understands and ignores the rest.
const (
	OptMaxTokens       = "max_tokens"
	OptTemperature     = "temperature"
	OptThinkingLevel   = "thinking_level" // "off" | "low" | "medium" | "high"
	OptReasoningEffort = "reasoning_effort"
	OptEnableThinking  = "enable_thinking"
	OptThinkingBudget  = "thinking_budget"
)
