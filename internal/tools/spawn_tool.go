package tools

import (
	"context"
	"fmt"
)

// SpawnTool lets an agent fire off a background subagent task without
// waiting for it to finish; the result is announced back via the parent's
// session once the subagent completes.
type SpawnTool struct {
	mgr          *SubagentManager
	defaultLabel string
	depth        int
}

// NewSpawnTool wraps mgr. defaultLabel names the calling agent (used as the
// default ParentID when the caller doesn't supply one); depth is this
// agent's own spawn depth (0 for a top-level agent).
func NewSpawnTool(mgr *SubagentManager, defaultLabel string, depth int) *SpawnTool {
	return &SpawnTool{mgr: mgr, defaultLabel: defaultLabel, depth: depth}
}

func (t *SpawnTool) Name() string        { return "spawn" }
func (t *SpawnTool) SideEffects() string { return "subagent" }
func (t *SpawnTool) Description() string {
	return "Spawn a background subagent to work on a task in parallel; its result is delivered back automatically when done"
}
func (t *SpawnTool) Parameters() map[string]interface{} {
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
			"model": map[string]interface{}{
				"type":        "string",
				"description": "Optional model override for this subagent",
			},
		},
		"required": []string{"task"},
	}
}

func (t *SpawnTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	task, _ := args["task"].(string)
	if task == "" {
		return ErrorResult("task is required")
	}
	label, _ := args["label"].(string)
	model, _ := args["model"].(string)

	parentID := ToolAgentKeyFromCtx(ctx)
	if parentID == "" {
		parentID = t.defaultLabel
	}
	channel := ToolChannelFromCtx(ctx)
	chatID := ToolChatIDFromCtx(ctx)
	peerKind := ToolPeerKindFromCtx(ctx)
	callback := ToolAsyncCBFromCtx(ctx)

	msg, err := t.mgr.Spawn(ctx, parentID, t.depth, task, label, model, channel, chatID, peerKind, callback)
	if err != nil {
		return ErrorResult(fmt.Sprintf("failed to spawn subagent: %v", err))
	}
	return SilentResult(msg)
}
