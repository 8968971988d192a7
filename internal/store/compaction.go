package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/relaygate/relaygate/internal/providers"
)

// Summarizer folds a session's dropped-for-budget message prefix,
// together with any existing summary, into a new summary string.
// Supplied by the agent runtime, which owns the LLM provider — the
// store itself never calls a provider directly.
type Summarizer func(ctx context.Context, previousSummary string, dropped []providers.Message) (string, error)

// importance classifies a history message for compaction drop ordering.
type importance int

const (
	importanceLow importance = iota
	importanceNormal
	importanceHigh
)

// classifyImportance assigns the default importance spec.md §4.2 names:
// system and tool_call/tool_result pairs are high, a user message is
// normal, a pure acknowledgment assistant message is low, any other
// assistant message is normal.
func classifyImportance(msgs []providers.Message) []importance {
	out := make([]importance, len(msgs))
	for i, m := range msgs {
		switch m.Role {
		case "system", "tool":
			out[i] = importanceHigh
		case "user":
			out[i] = importanceNormal
		case "assistant":
			switch {
			case len(m.ToolCalls) > 0:
				out[i] = importanceHigh
			case isAcknowledgment(m.Content):
				out[i] = importanceLow
			default:
				out[i] = importanceNormal
			}
		default:
			out[i] = importanceNormal
		}
	}
	return out
}

var acknowledgments = map[string]bool{
	"ok": true, "okay": true, "got it": true, "sounds good": true, "sure": true,
	"done": true, "will do": true, "understood": true, "noted": true,
	"on it": true, "yep": true, "yes": true, "no problem": true, "alright": true,
}

func isAcknowledgment(content string) bool {
	c := strings.ToLower(strings.TrimSpace(content))
	if c == "" || len(c) > 40 {
		return false
	}
	return acknowledgments[strings.TrimRight(c, ".!")]
}

// EstimateTokensWithCalibration estimates the token count of msgs. When
// the caller has a recent provider-reported prompt_tokens figure for a
// known message count, it's used to derive a per-message ratio — closer
// to the real tokenizer than the flat heuristic, without vendoring one.
// Falls back to a chars/4 heuristic otherwise.
func EstimateTokensWithCalibration(msgs []providers.Message, lastPromptTokens, lastMessageCount int) int {
	if lastPromptTokens > 0 && lastMessageCount > 0 {
		perMessage := float64(lastPromptTokens) / float64(lastMessageCount)
		return int(perMessage * float64(len(msgs)))
	}
	return estimateTokensHeuristic(msgs)
}

func estimateTokensHeuristic(msgs []providers.Message) int {
	total := 0
	for _, m := range msgs {
		total += len(m.Content) / 4
		for _, tc := range m.ToolCalls {
			total += len(tc.Name) / 4
			for k, v := range tc.Arguments {
				total += (len(k) + len(fmt.Sprint(v))) / 4
			}
		}
	}
	return total
}

// Compact applies spec.md §4.2's four-stage compaction algorithm over a
// message slice and returns (view, leftover): view is a prompt payload
// ≤ maxContextTokens when stages 1–3 alone could reach it; leftover is
// non-nil when the budget still isn't met after stage 3, meaning the
// caller must run stage 4 (summarize leftover, call again with the new
// summary and emptied-out middle — which stages 1–3 will then pass
// through untouched, making the overall operation idempotent).
//
// Stages: (1) always retain the first system message, the running
// summary, and the last keepRecent messages; (2) drop low-importance
// messages oldest-first; (3) drop normal-importance messages
// oldest-first. High-importance messages (system, tool_call/tool_result
// pairs) are never dropped by stages 2–3.
func Compact(history []providers.Message, summary string, maxContextTokens, keepRecent, lastPromptTokens, lastMessageCount int) (view []providers.Message, leftover []providers.Message) {
	if keepRecent <= 0 {
		keepRecent = 10
	}

	sys := headSystem(history)
	recent := recentTail(history, keepRecent)
	middleStart, middleEnd := middleBounds(history, keepRecent)
	middle := append([]providers.Message{}, history[middleStart:middleEnd]...)

	budget := func(mid []providers.Message) int {
		v := buildView(sys, summary, append(append([]providers.Message{}, mid...), recent...))
		return EstimateTokensWithCalibration(v, lastPromptTokens, lastMessageCount)
	}

	if maxContextTokens <= 0 || budget(middle) <= maxContextTokens {
		return buildView(sys, summary, append(middle, recent...)), nil
	}

	imp := classifyImportance(middle)
	middle = dropByImportance(middle, imp, importanceLow, maxContextTokens, budget)
	if budget(middle) <= maxContextTokens {
		return buildView(sys, summary, append(middle, recent...)), nil
	}

	imp = classifyImportance(middle)
	middle = dropByImportance(middle, imp, importanceNormal, maxContextTokens, budget)
	if budget(middle) <= maxContextTokens {
		return buildView(sys, summary, append(middle, recent...)), nil
	}

	return buildView(sys, summary, append(append([]providers.Message{}, middle...), recent...)), middle
}

// CompactWithSummary runs Compact and, if stage 4 is needed, invokes
// summarize on the leftover middle and re-runs with the resulting
// summary spliced in (stages 1–3 then pass the now-empty middle through
// untouched). Returns the final view and the new summary (unchanged from
// the input summary if stage 4 never ran).
func CompactWithSummary(ctx context.Context, history []providers.Message, summary string, maxContextTokens, keepRecent, lastPromptTokens, lastMessageCount int, summarize Summarizer) (view []providers.Message, newSummary string, compacted bool, err error) {
	v, leftover := Compact(history, summary, maxContextTokens, keepRecent, lastPromptTokens, lastMessageCount)
	if len(leftover) == 0 || summarize == nil {
		return v, summary, false, nil
	}

	newSummary, err = summarize(ctx, summary, leftover)
	if err != nil {
		return v, summary, false, err
	}

	sys := headSystem(history)
	recent := recentTail(history, keepRecent)
	return buildView(sys, newSummary, recent), newSummary, true, nil
}

func dropByImportance(msgs []providers.Message, imp []importance, level importance, maxContextTokens int, budget func([]providers.Message) int) []providers.Message {
	kept := make([]providers.Message, 0, len(msgs))
	for i, m := range msgs {
		if imp[i] != level {
			kept = append(kept, m)
			continue
		}
		rest := append(append([]providers.Message{}, kept...), msgs[i+1:]...)
		if budget(rest) <= maxContextTokens {
			return append(kept, msgs[i+1:]...)
		}
	}
	return kept
}

func headSystem(history []providers.Message) []providers.Message {
	if len(history) > 0 && history[0].Role == "system" {
		return history[:1]
	}
	return nil
}

func recentTail(history []providers.Message, keepRecent int) []providers.Message {
	_, end := middleBounds(history, keepRecent)
	if end >= len(history) {
		return nil
	}
	return append([]providers.Message{}, history[end:]...)
}

// middleBounds returns [start, end) of the droppable middle section:
// everything after the protected leading system message and before the
// protected last keepRecent messages.
func middleBounds(history []providers.Message, keepRecent int) (int, int) {
	start := 0
	if len(history) > 0 && history[0].Role == "system" {
		start = 1
	}
	end := len(history) - keepRecent
	if end < start {
		end = start
	}
	return start, end
}

func buildView(sys []providers.Message, summary string, rest []providers.Message) []providers.Message {
	view := make([]providers.Message, 0, len(sys)+1+len(rest))
	view = append(view, sys...)
	if summary != "" {
		view = append(view, providers.Message{Role: "user", Content: fmt.Sprintf("[Previous conversation summary]\n%s", summary)})
	}
	view = append(view, rest...)
	return view
}
