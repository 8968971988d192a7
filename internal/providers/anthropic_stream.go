package providers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ChatStream opens an SSE connection to the Messages API and returns a
// channel of ChatDelta. The connection phase is retried per p.retryConfig;
// once the stream starts, a mid-stream failure is surfaced as a single
// DeltaProviderError and the channel is closed.
func (p *AnthropicProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatDelta, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	body := p.buildRequestBody(model, req, true)

	respBody, err := RetryDo(ctx, p.retryConfig, func() (io.ReadCloser, error) {
		return p.doRequest(ctx, body)
	})
	if err != nil {
		return nil, err
	}

	out := make(chan ChatDelta, 16)
	go p.pumpStream(ctx, respBody, out)
	return out, nil
}

func (p *AnthropicProvider) pumpStream(ctx context.Context, respBody io.ReadCloser, out chan<- ChatDelta) {
	defer close(out)
	defer respBody.Close()

	emit := func(d ChatDelta) bool {
		select {
		case out <- d:
			return true
		case <-ctx.Done():
			return false
		}
	}

	toolCallJSON := make(map[int]string)
	toolCallIDs := make(map[int]string)
	var rawContentBlocks []json.RawMessage
	var currentBlockType string
	thinkingChars := 0
	usage := &Usage{}

	scanner := bufio.NewScanner(respBody)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var currentEvent string

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()

		if strings.HasPrefix(line, "event: ") {
			currentEvent = strings.TrimPrefix(line, "event: ")
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		switch currentEvent {
		case "message_start":
			var ev anthropicMessageStartEvent
			if err := json.Unmarshal([]byte(data), &ev); err == nil {
				if ev.Message.Usage.InputTokens > 0 {
					usage.PromptTokens = ev.Message.Usage.InputTokens
				}
				usage.CacheCreationTokens = ev.Message.Usage.CacheCreationInputTokens
				usage.CacheReadTokens = ev.Message.Usage.CacheReadInputTokens
			}

		case "content_block_start":
			var ev anthropicContentBlockStartEvent
			if err := json.Unmarshal([]byte(data), &ev); err == nil {
				currentBlockType = ev.ContentBlock.Type
				if ev.ContentBlock.Type == "tool_use" {
					idx := len(toolCallIDs)
					toolCallIDs[idx] = ev.ContentBlock.ID
					if !emit(ChatDelta{Kind: DeltaToolCallStart, ToolCallID: ev.ContentBlock.ID, ToolCallName: strings.TrimSpace(ev.ContentBlock.Name)}) {
						return
					}
				}
				rawContentBlocks = append(rawContentBlocks, json.RawMessage(fmt.Sprintf(`{"type":"%s"`, ev.ContentBlock.Type)))
			}

		case "content_block_delta":
			var ev anthropicContentBlockDeltaEvent
			if err := json.Unmarshal([]byte(data), &ev); err == nil {
				switch ev.Delta.Type {
				case "text_delta":
					if !emit(ChatDelta{Kind: DeltaTextChunk, Text: ev.Delta.Text}) {
						return
					}
				case "thinking_delta":
					thinkingChars += len(ev.Delta.Thinking)
					if !emit(ChatDelta{Kind: DeltaTextChunk, Thinking: ev.Delta.Thinking}) {
						return
					}
				case "input_json_delta":
					idx := len(toolCallIDs) - 1
					if idx >= 0 {
						toolCallJSON[idx] += ev.Delta.PartialJSON
						if !emit(ChatDelta{Kind: DeltaToolCallArg, ToolCallID: toolCallIDs[idx], ArgChunk: ev.Delta.PartialJSON}) {
							return
						}
					}
				}
			}

		case "content_block_stop":
			idx := len(rawContentBlocks) - 1
			if idx >= 0 {
				block := p.buildRawBlockFromJSON(currentBlockType, toolCallIDs, toolCallJSON, idx)
				if block != nil {
					rawContentBlocks[idx] = block
				}
			}
			if id, ok := toolCallIDs[idx]; ok && currentBlockType == "tool_use" {
				args := make(map[string]interface{})
				_ = json.Unmarshal([]byte(toolCallJSON[idx]), &args)
				if !emit(ChatDelta{Kind: DeltaToolCallEnd, ToolCallID: id, Arguments: args}) {
					return
				}
			}
			currentBlockType = ""

		case "message_delta":
			var ev anthropicMessageDeltaEvent
			if err := json.Unmarshal([]byte(data), &ev); err == nil {
				if ev.Usage.OutputTokens > 0 {
					usage.CompletionTokens = ev.Usage.OutputTokens
				}
			}

		case "error":
			var ev anthropicErrorEvent
			if err := json.Unmarshal([]byte(data), &ev); err == nil {
				emit(ChatDelta{Kind: DeltaProviderError, Err: fmt.Errorf("anthropic stream error: %s: %s", ev.Error.Type, ev.Error.Message), Recoverable: ev.Error.Type == "overloaded_error"})
				return
			}

		case "message_stop":
		}
	}

	if err := scanner.Err(); err != nil {
		emit(ChatDelta{Kind: DeltaProviderError, Err: fmt.Errorf("anthropic stream read: %w", err), Recoverable: true})
		return
	}

	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	if thinkingChars > 0 {
		usage.ThinkingTokens = thinkingChars / 4
	}
	emit(ChatDelta{Kind: DeltaUsageReport, Usage: usage})
}

// buildRawBlockFromJSON reconstructs one content block's raw JSON encoding
// for passback as history on the next turn (tool_use blocks need their
// complete input object; other block types are stored by type alone).
func (p *AnthropicProvider) buildRawBlockFromJSON(blockType string, ids map[int]string, argJSON map[int]string, idx int) json.RawMessage {
	if blockType != "tool_use" {
		return nil
	}
	id, ok := ids[idx]
	if !ok {
		return nil
	}
	raw := argJSON[idx]
	if raw == "" {
		raw = "{}"
	}
	return json.RawMessage(fmt.Sprintf(`{"type":"tool_use","id":%q,"input":%s}`, id, raw))
}
