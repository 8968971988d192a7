package tools

import (
	"context"
	"fmt"
)

// SubagentTool runs a subagent task synchronously, blocking the calling
// agent until it completes and returning its final result directly.
type SubagentTool struct {
	mgr          *SubagentManager
	defaultLabel string
	depth        int
}

// NewSubagentTool wraps mgr. See NewSpawnTool for defaultLabel/depth.
func NewSubagentTool(mgr *SubagentManager, defaultLabel string, depth int) *SubagentTool {
	return &SubagentTool{mgr: mgr, defaultLabel: defaultLabel, depth: depth}
}

func (t *SubagentTool) Name() string        { return "subagent" }
func (t *SubagentTool) SideEffects() string { return "subagent" }
func (t *SubagentTool) Description() string {
	return "Run a subagent task synchronously and return its final result"
}
func (t *SubagentTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task": map[string]interface{}{
				"type":        "string",
				"description": "The task for the subagent to complete",
			},
			"label": map[string]interface{}{
				"type":        "string",
				"description": "Short label identifying this subagent (default: derived from task)",
			},
		},
		"required": []string{"task"},
	}
}

func (t *SubagentTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	task, _ := args["task"].(string)
	if task == "" {
		return ErrorResult("task is required")
	}
	label, _ := args["label"].(string)

	parentID := ToolAgentKeyFromCtx(ctx)
	if parentID == "" {
		parentID = t.defaultLabel
	}
	channel := ToolChannelFromCtx(ctx)
	chatID := ToolChatIDFromCtx(ctx)

	result, iterations, err := t.mgr.RunSync(ctx, parentID, t.depth, task, label, channel, chatID)
	if err != nil {
		return ErrorResult(fmt.Sprintf("subagent failed after %d iterations: %v", iterations, err))
	}
	return SilentResult(result)
}
