package agent

import (
	"sort"

	"github.com/relaygate/relaygate/internal/providers"
	"github.com/relaygate/relaygate/pkg/protocol"
)

// streamingToolCall accumulates one tool call's start/arg/end deltas in the
// order its tool_call_start delta was received.
type streamingToolCall struct {
	providers.ToolCall
	order int
}

// consumeChatStream ranges over a provider's lazy ChatDelta sequence,
// forwarding text/thinking chunks as chat events, and folds the sequence
// back into a single ChatResponse the rest of the iteration loop already
// knows how to handle. A DeltaProviderError delta ends the stream early and
// is returned as the call's error.
func (l *Loop) consumeChatStream(req RunRequest, deltas <-chan providers.ChatDelta) (*providers.ChatResponse, error) {
	resp := &providers.ChatResponse{FinishReason: "stop"}
	calls := make(map[string]*streamingToolCall)
	nextOrder := 0

	for d := range deltas {
		switch d.Kind {
		case providers.DeltaTextChunk:
			if d.Thinking != "" {
				resp.Thinking += d.Thinking
				l.emit(AgentEvent{
					Type:    protocol.ChatEventThinking,
					AgentID: l.id,
					RunID:   req.RunID,
					Payload: map[string]string{"content": d.Thinking},
				})
			}
			if d.Text != "" {
				resp.Content += d.Text
				l.emit(AgentEvent{
					Type:    protocol.ChatEventChunk,
					AgentID: l.id,
					RunID:   req.RunID,
					Payload: map[string]string{"content": d.Text},
				})
			}

		case providers.DeltaToolCallStart:
			calls[d.ToolCallID] = &streamingToolCall{
				ToolCall: providers.ToolCall{ID: d.ToolCallID, Name: d.ToolCallName},
				order:    nextOrder,
			}
			nextOrder++

		case providers.DeltaToolCallArg:
			// Raw argument fragments are only needed by the provider's own
			// accumulator to build DeltaToolCallEnd's parsed Arguments; the
			// loop only cares about the final parsed result.

		case providers.DeltaToolCallEnd:
			tc, ok := calls[d.ToolCallID]
			if !ok {
				tc = &streamingToolCall{ToolCall: providers.ToolCall{ID: d.ToolCallID}, order: nextOrder}
				calls[d.ToolCallID] = tc
				nextOrder++
			}
			tc.Arguments = d.Arguments
			if sig, ok := d.Arguments["__thought_signature__"].(string); ok && sig != "" {
				delete(d.Arguments, "__thought_signature__")
				tc.Metadata = map[string]string{"thought_signature": sig}
			}

		case providers.DeltaUsageReport:
			if d.Usage != nil {
				resp.Usage = d.Usage
			}

		case providers.DeltaProviderError:
			return nil, d.Err
		}
	}

	if len(calls) > 0 {
		ordered := make([]*streamingToolCall, 0, len(calls))
		for _, tc := range calls {
			ordered = append(ordered, tc)
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].order < ordered[j].order })
		for _, tc := range ordered {
			resp.ToolCalls = append(resp.ToolCalls, tc.ToolCall)
		}
		resp.FinishReason = "tool_calls"
	}

	return resp, nil
}
