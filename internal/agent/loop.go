// Package agent runs the LLM ⇄ tool execution loop that turns inbound
// messages into replies.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/tinyclaw/internal/bus"
	"github.com/nextlevelbuilder/tinyclaw/internal/heartbeat"
	"github.com/nextlevelbuilder/tinyclaw/internal/providers"
	"github.com/nextlevelbuilder/tinyclaw/internal/sessions"
	"github.com/nextlevelbuilder/tinyclaw/internal/tools"
)

// iterationLimitNotice is the final assistant message when a run exhausts
// its tool-iteration budget.
const iterationLimitNotice = "Reached tool-iteration limit. Partial progress has been saved; ask me to continue if needed."

// Options tunes a Loop.
type Options struct {
	Model         string
	MaxTokens     int
	Temperature   float64
	MaxIterations int
	Workers       int
}

// Loop wires the bus, session store, provider, and tool registry into the
// agent's execution state machine.
type Loop struct {
	provider providers.Provider
	sessions *sessions.Manager
	registry *tools.Registry
	builder  *ContextBuilder
	msgBus   *bus.MessageBus
	summ     *Summarizer
	opts     Options
	tracer   trace.Tracer

	// sessionLocks serializes runs per session key; different keys proceed
	// in parallel.
	sessionLocks sync.Map
}

// NewLoop assembles an agent loop. summ may be nil to disable compaction.
func NewLoop(provider providers.Provider, sess *sessions.Manager, registry *tools.Registry, builder *ContextBuilder, msgBus *bus.MessageBus, summ *Summarizer, opts Options) *Loop {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 20
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Loop{
		provider: provider,
		sessions: sess,
		registry: registry,
		builder:  builder,
		msgBus:   msgBus,
		summ:     summ,
		opts:     opts,
		tracer:   otel.Tracer("tinyclaw/agent"),
	}
}

// Sessions exposes the session manager (heartbeat targeting, CLI commands).
func (l *Loop) Sessions() *sessions.Manager { return l.sessions }

// Run consumes the inbound queue with a worker pool until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < l.opts.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				msg, ok := l.msgBus.ConsumeInbound(ctx)
				if !ok {
					return
				}
				l.handleInbound(ctx, msg)
			}
		}(i)
	}
	wg.Wait()
}

// handleInbound runs one message end to end and publishes the reply.
func (l *Loop) handleInbound(ctx context.Context, msg bus.InboundMessage) {
	reply, err := l.Process(ctx, msg, nil)
	if err != nil {
		slog.Error("agent.process_failed", "session", msg.SessionKey(), "error", err)
		reply = "⚠️ " + err.Error()
	}
	l.deliver(msg, reply)
}

// deliver routes a finished reply. System-originated runs stay silent unless
// the message asked for delivery; heartbeat all-quiet acknowledgements are
// suppressed.
func (l *Loop) deliver(msg bus.InboundMessage, reply string) {
	if reply == "" {
		return
	}
	if msg.Metadata["origin"] == "heartbeat" {
		if heartbeat.ShouldSuppress(reply) {
			slog.Debug("heartbeat.quiet")
			return
		}
		channel, chatID := l.sessions.LastUsedChannel()
		if channel == "" {
			slog.Debug("heartbeat.no_target")
			return
		}
		l.msgBus.PublishOutbound(bus.OutboundMessage{Channel: channel, ChatID: chatID, Content: reply})
		return
	}
	if msg.Channel == bus.ChannelSystem && !msg.Deliver {
		slog.Debug("agent.reply_swallowed", "session", msg.SessionKey())
		return
	}
	channel, chatID := msg.Channel, msg.ChatID
	if msg.Channel == bus.ChannelSystem {
		// "system" is not a real transport. Cron jobs carry their payload
		// target in metadata; anything else falls back to wherever the user
		// last talked to us.
		channel, chatID = msg.Metadata["payloadChannel"], msg.Metadata["payloadChatId"]
		if channel == "" {
			channel, chatID = l.sessions.LastUsedChannel()
		}
		if channel == "" {
			return
		}
	}
	l.msgBus.PublishOutbound(bus.OutboundMessage{Channel: channel, ChatID: chatID, Content: reply})
}

// ProcessDirect runs one message synchronously, bypassing the bus.
func (l *Loop) ProcessDirect(ctx context.Context, msg bus.InboundMessage) (string, error) {
	return l.Process(ctx, msg, nil)
}

// ProcessDirectStream is ProcessDirect with assistant-text deltas pushed to
// onChunk as they arrive.
func (l *Loop) ProcessDirectStream(ctx context.Context, msg bus.InboundMessage, onChunk func(string)) (string, error) {
	return l.Process(ctx, msg, onChunk)
}

// Process runs the full state machine for one inbound message and returns
// the final assistant text. onChunk, when non-nil, receives streaming deltas
// of assistant text.
func (l *Loop) Process(ctx context.Context, msg bus.InboundMessage, onChunk func(string)) (string, error) {
	key := msg.SessionKey()

	lockAny, _ := l.sessionLocks.LoadOrStore(key, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := l.tracer.Start(ctx, "agent.process",
		trace.WithAttributes(
			attribute.String("session.key", key),
			attribute.String("channel", msg.Channel),
		))
	defer span.End()

	ctx = tools.WithInvocation(ctx, tools.Invocation{
		SessionKey: key,
		Channel:    msg.Channel,
		ChatID:     msg.ChatID,
	})
	l.sessions.GetOrCreate(key)
	l.sessions.SetMetadata(key, msg.Channel, l.opts.Model)

	content := msg.Content
	if len(msg.Media) > 0 {
		content += "\n[attachments: " + strings.Join(msg.Media, ", ") + "]"
	}
	if err := l.sessions.Append(key, providers.Message{Role: "user", Content: content}); err != nil {
		slog.Warn("session.persist_failed", "session", key, "error", err)
	}

	reply, err := l.iterate(ctx, key, msg.Channel, onChunk)
	if err != nil {
		return "", err
	}

	if l.summ != nil {
		l.summ.MaybeCompact(key)
	}
	return reply, nil
}

// iterate is the CALL_LLM → RUN_TOOLS cycle. Assistant and tool messages are
// persisted as they are produced, so a crash mid-run loses at most the
// in-flight LLM call.
func (l *Loop) iterate(ctx context.Context, key, channel string, onChunk func(string)) (string, error) {
	for iteration := 0; iteration < l.opts.MaxIterations; iteration++ {
		req := providers.ChatRequest{
			Messages: l.builder.Build(key, channel, l.sessions.Summary(key), l.sessions.History(key)),
			Tools:    l.registry.ProviderDefs(),
			Model:    l.opts.Model,
			Options:  l.requestOptions(),
		}

		resp, err := l.callProvider(ctx, req, onChunk)
		if err != nil {
			return "", fmt.Errorf("LLM error: %w", err)
		}
		if resp.Usage != nil {
			l.sessions.AccumulateTokens(key, int64(resp.Usage.PromptTokens), int64(resp.Usage.CompletionTokens))
		}

		assistant := providers.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		}
		if err := l.sessions.Append(key, assistant); err != nil {
			slog.Warn("session.persist_failed", "session", key, "error", err)
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		// Tool calls run strictly in order; each result is appended before
		// the next call starts.
		for _, tc := range resp.ToolCalls {
			result := l.runTool(ctx, key, tc)
			toolMsg := providers.Message{
				Role:       "tool",
				Content:    result.ForLLM,
				ToolCallID: tc.ID,
			}
			if err := l.sessions.Append(key, toolMsg); err != nil {
				slog.Warn("session.persist_failed", "session", key, "error", err)
			}
		}
	}

	if err := l.sessions.Append(key, providers.Message{Role: "assistant", Content: iterationLimitNotice}); err != nil {
		slog.Warn("session.persist_failed", "session", key, "error", err)
	}
	return iterationLimitNotice, nil
}

func (l *Loop) callProvider(ctx context.Context, req providers.ChatRequest, onChunk func(string)) (*providers.ChatResponse, error) {
	if onChunk == nil {
		return l.provider.Chat(ctx, req)
	}
	return l.provider.ChatStream(ctx, req, func(chunk providers.StreamChunk) {
		if chunk.Content != "" {
			onChunk(chunk.Content)
		}
	})
}

func (l *Loop) runTool(ctx context.Context, key string, tc providers.ToolCall) *tools.Result {
	ctx, span := l.tracer.Start(ctx, "agent.tool",
		trace.WithAttributes(attribute.String("tool.name", tc.Name)))
	defer span.End()

	result := l.registry.Execute(ctx, tc.Name, tc.Arguments)
	if result.IsError {
		slog.Warn("tool.error", "session", key, "tool", tc.Name, "result", result.ForLLM)
	}
	return result
}

func (l *Loop) requestOptions() map[string]interface{} {
	opts := map[string]interface{}{}
	if l.opts.MaxTokens > 0 {
		opts[providers.OptMaxTokens] = l.opts.MaxTokens
	}
	if l.opts.Temperature > 0 {
		opts[providers.OptTemperature] = l.opts.Temperature
	}
	return opts
}

// RunSpawned executes a subagent task in its own fresh session and injects
// the outcome back as a system message for the origin session.
func (l *Loop) RunSpawned(ctx context.Context, key, originKey, task string) {
	l.sessions.GetOrCreate(key)
	if origin := l.sessions.GetOrCreate(originKey); origin != nil {
		l.sessions.SetSpawnInfo(key, originKey, origin.SpawnDepth+1)
	}

	reply, err := l.Process(ctx, bus.InboundMessage{
		Channel:  "spawn",
		SenderID: "spawn",
		ChatID:   strings.TrimPrefix(key, "spawn:"),
		Content:  task,
	}, nil)

	outcome := reply
	if err != nil {
		outcome = "subagent failed: " + err.Error()
	}

	parts := strings.SplitN(originKey, ":", 2)
	if len(parts) != 2 {
		return
	}
	l.msgBus.PublishInbound(bus.InboundMessage{
		Channel:  parts[0],
		SenderID: "spawn",
		ChatID:   parts[1],
		Content:  "Background task finished. Result:\n" + outcome,
		Metadata: map[string]string{"origin": "spawn", "spawnKey": key},
	})
}
