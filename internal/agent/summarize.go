package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/tinyclaw/internal/config"
	"github.com/nextlevelbuilder/tinyclaw/internal/providers"
	"github.com/nextlevelbuilder/tinyclaw/internal/sessions"
)

const summarizePrompt = "Summarize this conversation segment for an AI assistant's long-term context. " +
	"Keep decisions, facts, names, open tasks, and user preferences. Be dense; drop pleasantries.\n\n"

const mergePrompt = "Merge these conversation summaries into one coherent summary. " +
	"Keep every decision, fact, name, open task, and user preference; drop duplication.\n\n"

// Summarizer compacts long sessions in the background so history stays
// inside the model's context window.
type Summarizer struct {
	provider      providers.Provider
	sessions      *sessions.Manager
	cfg           config.CompactionConfig
	model         string
	contextWindow int
	timeout       time.Duration

	// inflight holds one mutex per session; TryLock makes compaction
	// single-flight per key.
	inflight sync.Map

	// wg lets tests wait for background compactions.
	wg sync.WaitGroup
}

func NewSummarizer(provider providers.Provider, sess *sessions.Manager, cfg config.CompactionConfig, model string, contextWindow int) *Summarizer {
	return &Summarizer{
		provider:      provider,
		sessions:      sess,
		cfg:           cfg,
		model:         model,
		contextWindow: contextWindow,
		timeout:       2 * time.Minute,
	}
}

// MaybeCompact starts a background compaction when the session crosses the
// message or token threshold. A compaction already running for the key makes
// this a no-op.
func (s *Summarizer) MaybeCompact(key string) {
	history := s.sessions.History(key)
	if !s.needsCompaction(history) {
		return
	}

	lockAny, _ := s.inflight.LoadOrStore(key, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	if !lock.TryLock() {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer lock.Unlock()
		if err := s.compact(key); err != nil {
			slog.Error("summarize.failed", "session", key, "error", err)
		}
	}()
}

// Wait blocks until in-flight compactions finish. Test hook.
func (s *Summarizer) Wait() { s.wg.Wait() }

func (s *Summarizer) needsCompaction(history []providers.Message) bool {
	if s.cfg.MessageThreshold > 0 && len(history) >= s.cfg.MessageThreshold {
		return true
	}
	if s.contextWindow > 0 && s.cfg.TokenShare > 0 {
		if float64(sessions.EstimateTokens(history)) >= s.cfg.TokenShare*float64(s.contextWindow) {
			return true
		}
	}
	return false
}

// compact summarizes everything before the keep window and swaps the result
// in. The snapshot length pins the replacement: messages appended while the
// LLM was summarizing stay untouched.
func (s *Summarizer) compact(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	history := s.sessions.History(key)
	priorSummary := s.sessions.Summary(key)
	snapshotLen := len(history)

	start := sessions.ExpandKeepWindow(history, s.cfg.KeepLastMessages)
	if start == 0 {
		return nil
	}
	head, tail := history[:start], history[start:]

	var partials []string
	if priorSummary != "" {
		partials = append(partials, priorSummary)
	}
	for _, batch := range batchByChars(head, s.cfg.BatchChars) {
		summary, err := s.summarizeBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("batch summary: %w", err)
		}
		partials = append(partials, summary)
	}

	merged, err := s.merge(ctx, partials)
	if err != nil {
		return fmt.Errorf("summary merge: %w", err)
	}

	kept := make([]providers.Message, len(tail))
	copy(kept, tail)
	if err := s.sessions.ReplaceHistory(key, merged, snapshotLen, kept); err != nil {
		return err
	}
	slog.Info("summarize.done", "session", key, "compacted", len(head), "kept", len(kept))
	return nil
}

func (s *Summarizer) summarizeBatch(ctx context.Context, batch []providers.Message) (string, error) {
	resp, err := s.provider.Chat(ctx, providers.ChatRequest{
		Model: s.model,
		Messages: []providers.Message{
			{Role: "user", Content: summarizePrompt + renderTranscript(batch)},
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func (s *Summarizer) merge(ctx context.Context, partials []string) (string, error) {
	switch len(partials) {
	case 0:
		return "", nil
	case 1:
		return partials[0], nil
	}
	resp, err := s.provider.Chat(ctx, providers.ChatRequest{
		Model: s.model,
		Messages: []providers.Message{
			{Role: "user", Content: mergePrompt + strings.Join(partials, "\n\n---\n\n")},
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// batchByChars splits messages into chunks of roughly maxChars of rendered
// transcript, never splitting a single message.
func batchByChars(msgs []providers.Message, maxChars int) [][]providers.Message {
	if maxChars <= 0 {
		maxChars = 8000
	}
	var batches [][]providers.Message
	var current []providers.Message
	size := 0
	for _, m := range msgs {
		msgSize := len(m.Content) + 32
		if size+msgSize > maxChars && len(current) > 0 {
			batches = append(batches, current)
			current = nil
			size = 0
		}
		current = append(current, m)
		size += msgSize
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func renderTranscript(msgs []providers.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case "tool":
			fmt.Fprintf(&b, "[tool result] %s\n", m.Content)
		case "assistant":
			if len(m.ToolCalls) > 0 {
				names := make([]string, 0, len(m.ToolCalls))
				for _, tc := range m.ToolCalls {
					names = append(names, tc.Name)
				}
				fmt.Fprintf(&b, "assistant: [called %s] %s\n", strings.Join(names, ", "), m.Content)
				continue
			}
			fmt.Fprintf(&b, "assistant: %s\n", m.Content)
		default:
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
	}
	return b.String()
}
