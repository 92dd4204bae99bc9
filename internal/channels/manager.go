package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/nextlevelbuilder/tinyclaw/internal/bus"
)

// maxMessageChars splits oversized outbound messages; most chat transports
// reject very long single messages.
const maxMessageChars = 4000

// Manager starts channels and pumps the outbound queue to them.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel
	msgBus   *bus.MessageBus
}

func NewManager(msgBus *bus.MessageBus) *Manager {
	return &Manager{
		channels: make(map[string]Channel),
		msgBus:   msgBus,
	}
}

// Register adds a channel before Start.
func (m *Manager) Register(c Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[c.Name()] = c
}

// Get returns a channel by name.
func (m *Manager) Get(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.channels[name]
	return c, ok
}

// Start launches every channel and the outbound dispatcher. It returns once
// setup is complete; the dispatcher runs until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, c := range m.channels {
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("channel %s start: %w", name, err)
		}
		slog.Info("channel.started", "channel", name)
	}
	go m.dispatch(ctx)
	return nil
}

// Stop shuts every channel down.
func (m *Manager) Stop() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, c := range m.channels {
		if err := c.Stop(); err != nil {
			slog.Warn("channel.stop_failed", "channel", name, "error", err)
		}
	}
}

// dispatch pumps outbound messages to their channels, splitting long
// content.
func (m *Manager) dispatch(ctx context.Context) {
	for {
		msg, ok := m.msgBus.SubscribeOutbound(ctx)
		if !ok {
			return
		}
		c, found := m.Get(msg.Channel)
		if !found {
			slog.Warn("outbound.unknown_channel", "channel", msg.Channel)
			continue
		}
		for _, part := range SplitMessage(msg.Content, maxMessageChars) {
			if err := c.Send(msg.ChatID, part); err != nil {
				slog.Error("outbound.send_failed", "channel", msg.Channel, "error", err)
				break
			}
		}
	}
}

// SplitMessage cuts content into chunks of at most limit characters,
// preferring newline boundaries.
func SplitMessage(content string, limit int) []string {
	if limit <= 0 || len(content) <= limit {
		return []string{content}
	}
	var parts []string
	for len(content) > limit {
		cut := limit
		// Look for a newline in the back half of the window.
		for i := limit; i > limit/2; i-- {
			if content[i-1] == '\n' {
				cut = i
				break
			}
		}
		// A hard cut must not land mid-rune.
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		parts = append(parts, content[:cut])
		content = content[cut:]
	}
	if len(content) > 0 {
		parts = append(parts, content)
	}
	return parts
}
