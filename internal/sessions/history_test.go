package sessions

import (
	"strings"
	"testing"

	"github.com/nextlevelbuilder/tinyclaw/internal/providers"
)

func toolGroup(id string) []providers.Message {
	return []providers.Message{
		{Role: "assistant", ToolCalls: []providers.ToolCall{{ID: id, Name: "echo", Arguments: map[string]interface{}{}}}},
		{Role: "tool", Content: strings.Repeat("r", 40), ToolCallID: id},
	}
}

// No truncation point may land inside a tool-call group.
func TestTruncateForContextKeepsGroupsIntact(t *testing.T) {
	var history []providers.Message
	history = append(history, providers.Message{Role: "user", Content: strings.Repeat("a", 400)})
	history = append(history, toolGroup("c1")...)
	history = append(history, providers.Message{Role: "assistant", Content: strings.Repeat("b", 400)})
	history = append(history, toolGroup("c2")...)
	history = append(history, providers.Message{Role: "assistant", Content: "done"})

	for budget := 1; budget < 400; budget += 7 {
		got := TruncateForContext(history, budget)
		if len(got) > 0 && got[0].Role == "tool" {
			t.Fatalf("budget %d: truncated tail starts with a tool result", budget)
		}
		if violated := checkGroupIntegrity(got); violated != "" {
			t.Fatalf("budget %d: %s", budget, violated)
		}
	}
}

func checkGroupIntegrity(msgs []providers.Message) string {
	known := make(map[string]bool)
	for _, m := range msgs {
		if m.Role == "assistant" {
			for _, tc := range m.ToolCalls {
				known[tc.ID] = true
			}
		}
		if m.Role == "tool" && !known[m.ToolCallID] {
			return "tool result " + m.ToolCallID + " has no preceding assistant tool_call"
		}
	}
	return ""
}

func TestTruncateForContextKeepsNewestSuffix(t *testing.T) {
	history := []providers.Message{
		{Role: "user", Content: strings.Repeat("x", 4000)},
		{Role: "assistant", Content: "short1"},
		{Role: "user", Content: "short2"},
	}
	got := TruncateForContext(history, 100)
	if len(got) != 2 || got[0].Content != "short1" {
		t.Errorf("truncated tail = %+v", got)
	}
}

func TestExpandKeepWindowBacksOverToolResults(t *testing.T) {
	var history []providers.Message
	history = append(history, providers.Message{Role: "user", Content: "q1"})
	history = append(history, providers.Message{Role: "assistant", ToolCalls: []providers.ToolCall{
		{ID: "c1", Name: "a", Arguments: map[string]interface{}{}},
		{ID: "c2", Name: "b", Arguments: map[string]interface{}{}},
	}})
	history = append(history, providers.Message{Role: "tool", Content: "r1", ToolCallID: "c1"})
	history = append(history, providers.Message{Role: "tool", Content: "r2", ToolCallID: "c2"})
	history = append(history, providers.Message{Role: "assistant", Content: "done"})

	// keep=2 would start at the second tool result; the window must expand
	// back to the assistant message carrying the tool_calls.
	start := ExpandKeepWindow(history, 2)
	if history[start].Role != "assistant" || len(history[start].ToolCalls) != 2 {
		t.Errorf("keep window starts at %d (%s), want the assistant tool_calls message", start, history[start].Role)
	}
}

func TestSanitizeHistorySynthesizesMissingResults(t *testing.T) {
	msgs := []providers.Message{
		{Role: "user", Content: "q"},
		{Role: "assistant", ToolCalls: []providers.ToolCall{
			{ID: "c1", Name: "a", Arguments: map[string]interface{}{}},
		}},
		// result for c1 missing
		{Role: "assistant", Content: "done"},
	}
	got := SanitizeHistory(msgs)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4 (synthesized result)", len(got))
	}
	if got[2].Role != "tool" || got[2].ToolCallID != "c1" {
		t.Errorf("got[2] = %+v, want synthesized tool result for c1", got[2])
	}
}

func TestSanitizeHistoryDropsMismatchedResults(t *testing.T) {
	msgs := []providers.Message{
		{Role: "user", Content: "q"},
		{Role: "assistant", ToolCalls: []providers.ToolCall{
			{ID: "c1", Name: "a", Arguments: map[string]interface{}{}},
		}},
		{Role: "tool", Content: "r", ToolCallID: "c1"},
		{Role: "tool", Content: "stray", ToolCallID: "c9"},
		{Role: "assistant", Content: "done"},
	}
	got := SanitizeHistory(msgs)
	for _, m := range got {
		if m.ToolCallID == "c9" {
			t.Error("mismatched tool result c9 should have been dropped")
		}
	}
	if violated := checkGroupIntegrity(got); violated != "" {
		t.Error(violated)
	}
}

func TestEstimateTokens(t *testing.T) {
	msgs := []providers.Message{{Role: "user", Content: strings.Repeat("a", 400)}}
	if got := EstimateTokens(msgs); got != 100 {
		t.Errorf("EstimateTokens = %d, want 100", got)
	}
}
