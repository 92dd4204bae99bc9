package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nextlevelbuilder/tinyclaw/internal/memory"
	"github.com/nextlevelbuilder/tinyclaw/internal/providers"
	"github.com/nextlevelbuilder/tinyclaw/internal/sessions"
	"github.com/nextlevelbuilder/tinyclaw/internal/skills"
	"github.com/nextlevelbuilder/tinyclaw/internal/tools"
)

// bootstrapFiles are loaded from the workspace root into the system prompt,
// in this order, when present.
var bootstrapFiles = []string{"AGENTS.md", "SOUL.md", "USER.md", "IDENTITY.md"}

const defaultIdentity = "You are a personal assistant running as a long-lived agent. " +
	"You have tools for files, shell, web, messaging, scheduling, and memory. " +
	"Prefer doing the work with tools over describing it."

// ContextBuilder assembles the message window for each LLM call.
type ContextBuilder struct {
	workspace string
	registry  *tools.Registry
	skills    *skills.Loader
	memory    *memory.Store
	maxTokens int // history token budget; 0 disables truncation
}

func NewContextBuilder(workspace string, registry *tools.Registry, sk *skills.Loader, mem *memory.Store, maxHistoryTokens int) *ContextBuilder {
	return &ContextBuilder{
		workspace: workspace,
		registry:  registry,
		skills:    sk,
		memory:    mem,
		maxTokens: maxHistoryTokens,
	}
}

// Build produces the full message list for a request: system prompt, then
// the summary (when present) as its own system message, then the truncated
// history ending with the current user message.
func (b *ContextBuilder) Build(sessionKey, channel, summary string, history []providers.Message) []providers.Message {
	msgs := []providers.Message{{Role: "system", Content: b.systemPrompt(sessionKey, channel)}}
	if summary != "" {
		msgs = append(msgs, providers.Message{
			Role:    "system",
			Content: "Summary of earlier conversation: " + summary,
		})
	}
	return append(msgs, sessions.TruncateForContext(history, b.maxTokens)...)
}

func (b *ContextBuilder) systemPrompt(sessionKey, channel string) string {
	var sections []string

	identity := b.bootstrapSection()
	if identity == "" {
		identity = defaultIdentity
	}
	sections = append(sections, identity)

	sections = append(sections, fmt.Sprintf(
		"Current time: %s\nSession: %s\nChannel: %s\nWorkspace: %s",
		time.Now().Format("Mon, 02 Jan 2006 15:04 MST"), sessionKey, channel, b.workspace))

	if b.registry != nil {
		if summaries := b.registry.Summaries(); len(summaries) > 0 {
			sections = append(sections, "## Tools\n"+strings.Join(summaries, "\n"))
		}
	}
	if b.skills != nil {
		if s := b.skills.PromptSection(); s != "" {
			sections = append(sections, s)
		}
	}
	if b.memory != nil {
		if m := b.memory.Context(); m != "" {
			sections = append(sections, "## Memory\n"+m)
		}
	}

	return strings.Join(sections, "\n\n")
}

// bootstrapSection concatenates the workspace bootstrap files that exist.
func (b *ContextBuilder) bootstrapSection() string {
	var parts []string
	for _, name := range bootstrapFiles {
		data, err := os.ReadFile(filepath.Join(b.workspace, name))
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
