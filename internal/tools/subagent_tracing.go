package tools

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/relaygate/relaygate/internal/providers"
	"github.com/relaygate/relaygate/internal/store"
	"github.com/relaygate/relaygate/internal/tracing"
)

// emitLLMSpan records one subagent LLM call, mirroring agent.Loop's
// emitLLMSpan but scoped to SubagentManager (subagents have no agent UUID
// of their own; they inherit the parent's trace).
func (sm *SubagentManager) emitLLMSpan(ctx context.Context, start time.Time, iteration int, model string, messages []providers.Message, resp *providers.ChatResponse, callErr error) {
	traceID := tracing.TraceIDFromContext(ctx)
	collector := tracing.CollectorFromContext(ctx)
	if collector == nil || traceID == uuid.Nil {
		return
	}

	now := time.Now().UTC()
	span := store.SpanData{
		ID:         store.GenNewID(),
		TraceID:    traceID,
		SpanType:   store.SpanTypeLLMCall,
		Name:       model,
		StartTime:  start,
		EndTime:    &now,
		DurationMS: int(now.Sub(start).Milliseconds()),
		Model:      model,
		Status:     store.SpanStatusCompleted,
		Level:      store.SpanLevelDefault,
		CreatedAt:  now,
	}
	if parentID := tracing.ParentSpanIDFromContext(ctx); parentID != uuid.Nil {
		span.ParentSpanID = &parentID
	}

	if callErr != nil {
		span.Status = store.SpanStatusError
		span.Error = callErr.Error()
	} else if resp != nil {
		if resp.Usage != nil {
			span.InputTokens = resp.Usage.PromptTokens
			span.OutputTokens = resp.Usage.CompletionTokens
		}
		span.FinishReason = resp.FinishReason
		limit := 500
		if collector.Verbose() {
			limit = 100000
		}
		span.OutputPreview = truncateStr(resp.Content, limit)
	}

	collector.EmitSpan(span)
}

// emitToolSpan records one tool call made during subagent execution.
func (sm *SubagentManager) emitToolSpan(ctx context.Context, start time.Time, toolName, toolCallID, input, output string, isError bool) {
	traceID := tracing.TraceIDFromContext(ctx)
	collector := tracing.CollectorFromContext(ctx)
	if collector == nil || traceID == uuid.Nil {
		return
	}

	now := time.Now().UTC()
	previewLimit := 500
	if collector.Verbose() {
		previewLimit = 100000
	}
	span := store.SpanData{
		ID:            store.GenNewID(),
		TraceID:       traceID,
		SpanType:      store.SpanTypeToolCall,
		Name:          toolName,
		StartTime:     start,
		EndTime:       &now,
		DurationMS:    int(now.Sub(start).Milliseconds()),
		ToolName:      toolName,
		ToolCallID:    toolCallID,
		InputPreview:  truncateStr(input, previewLimit),
		OutputPreview: truncateStr(output, previewLimit),
		Status:        store.SpanStatusCompleted,
		Level:         store.SpanLevelDefault,
		CreatedAt:     now,
	}
	if parentID := tracing.ParentSpanIDFromContext(ctx); parentID != uuid.Nil {
		span.ParentSpanID = &parentID
	}
	if isError {
		span.Status = store.SpanStatusError
		span.Error = truncateStr(output, 200)
	}

	collector.EmitSpan(span)
}

// emitSubagentSpan records the root span for one subagent run, parented
// under the originating agent's root span (from ctx's parent_span_id,
// which executeTask preserved from the parent request before overriding it for
// the subagent's own children).
func (sm *SubagentManager) emitSubagentSpan(ctx context.Context, spanID uuid.UUID, start time.Time, task *SubagentTask, model, finalContent string) {
	traceID := tracing.TraceIDFromContext(ctx)
	collector := tracing.CollectorFromContext(ctx)
	if collector == nil || traceID == uuid.Nil {
		return
	}

	now := time.Now().UTC()
	span := store.SpanData{
		ID:         spanID,
		TraceID:    traceID,
		SpanType:   store.SpanTypeAgent,
		Name:       "subagent:" + task.Label,
		StartTime:  start,
		EndTime:    &now,
		DurationMS: int(now.Sub(start).Milliseconds()),
		Model:      model,
		Status:     store.SpanStatusCompleted,
		Level:      store.SpanLevelDefault,
		CreatedAt:  now,
	}
	if parentID := tracing.ParentSpanIDFromContext(ctx); parentID != uuid.Nil {
		span.ParentSpanID = &parentID
	}
	if task.Status == TaskStatusFailed || task.Status == TaskStatusCancelled {
		span.Status = store.SpanStatusError
		span.Error = task.Result
	} else {
		limit := 500
		if collector.Verbose() {
			limit = 100000
		}
		span.OutputPreview = truncateStr(finalContent, limit)
	}

	collector.EmitSpan(span)
}

// scheduleArchive removes a completed task from the in-memory task map
// after it, so its record no longer shows up in listings, but only once
// callers have had a chance to poll its final status.
func (sm *SubagentManager) scheduleArchive(taskID string, after time.Duration) {
	time.Sleep(after)
	sm.mu.Lock()
	delete(sm.tasks, taskID)
	sm.mu.Unlock()
}
