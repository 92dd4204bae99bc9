package sessions

import (
	"log/slog"

	"github.com/nextlevelbuilder/tinyclaw/internal/providers"
)

// EstimateTokens approximates token usage as chars/4 across all messages,
// including serialized tool call arguments.
func EstimateTokens(msgs []providers.Message) int {
	chars := 0
	for _, m := range msgs {
		chars += len(m.Content)
		for _, tc := range m.ToolCalls {
			chars += len(tc.Name) + 32
			for k, v := range tc.Arguments {
				chars += len(k) + 16
				if s, ok := v.(string); ok {
					chars += len(s)
				}
			}
		}
	}
	return chars / 4
}

// TruncateForContext returns the newest suffix of history fitting maxTokens
// (chars/4 estimate) without splitting a tool-call group: an assistant message
// carrying tool_calls and its role=tool answers are kept together or dropped
// together.
func TruncateForContext(history []providers.Message, maxTokens int) []providers.Message {
	if maxTokens <= 0 || len(history) == 0 {
		return history
	}

	total := 0
	cut := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		total += messageTokens(history[i])
		if total > maxTokens {
			break
		}
		cut = i
	}
	if cut == 0 {
		return history
	}

	// Never start the tail inside a tool-call group: advance past any leading
	// role=tool messages, then drop them together with their assistant anchor
	// by moving forward to the next group boundary.
	for cut < len(history) && history[cut].Role == "tool" {
		cut++
	}
	return history[cut:]
}

func messageTokens(m providers.Message) int {
	chars := len(m.Content)
	for _, tc := range m.ToolCalls {
		chars += len(tc.Name) + 32
		for k, v := range tc.Arguments {
			chars += len(k) + 16
			if s, ok := v.(string); ok {
				chars += len(s)
			}
		}
	}
	return chars / 4
}

// ExpandKeepWindow widens a keep-last-n tail start backward so it does not
// begin inside a tool-call group. Returns the adjusted start index.
func ExpandKeepWindow(history []providers.Message, keepLast int) int {
	start := len(history) - keepLast
	if start <= 0 {
		return 0
	}
	// Walk back while the window would open on tool results, so the matching
	// assistant tool_calls message stays in the kept tail.
	for start > 0 && history[start].Role == "tool" {
		start--
	}
	return start
}

// SanitizeHistory repairs tool_use/tool_result pairing:
//   - leading orphan tool messages are dropped
//   - tool results without a matching tool_call in the preceding assistant
//     message are dropped
//   - missing tool results are synthesized so every tool_call is answered
func SanitizeHistory(msgs []providers.Message) []providers.Message {
	if len(msgs) == 0 {
		return msgs
	}

	start := 0
	for start < len(msgs) && msgs[start].Role == "tool" {
		slog.Warn("dropping orphaned tool message at history start", "tool_call_id", msgs[start].ToolCallID)
		start++
	}
	if start >= len(msgs) {
		return nil
	}

	var result []providers.Message
	for i := start; i < len(msgs); i++ {
		msg := msgs[i]

		if msg.Role == "assistant" && len(msg.ToolCalls) > 0 {
			expectedIDs := make(map[string]bool, len(msg.ToolCalls))
			order := make([]string, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				expectedIDs[tc.ID] = true
				order = append(order, tc.ID)
			}

			result = append(result, msg)

			for i+1 < len(msgs) && msgs[i+1].Role == "tool" {
				i++
				toolMsg := msgs[i]
				if expectedIDs[toolMsg.ToolCallID] {
					result = append(result, toolMsg)
					delete(expectedIDs, toolMsg.ToolCallID)
				} else {
					slog.Warn("dropping mismatched tool result", "tool_call_id", toolMsg.ToolCallID)
				}
			}

			for _, id := range order {
				if expectedIDs[id] {
					slog.Warn("synthesizing missing tool result", "tool_call_id", id)
					result = append(result, providers.Message{
						Role:       "tool",
						Content:    "[tool result missing: session was compacted]",
						ToolCallID: id,
					})
				}
			}
		} else if msg.Role == "tool" {
			slog.Warn("dropping orphaned tool message mid-history", "tool_call_id", msg.ToolCallID)
		} else {
			result = append(result, msg)
		}
	}

	return result
}
