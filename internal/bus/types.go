package bus

import "context"

// InboundMessage represents a message received from a channel (CLI, Telegram, web, etc.)
type InboundMessage struct {
	Channel  string            `json:"channel"`
	SenderID string            `json:"sender_id"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Media    []string          `json:"media,omitempty"`
	Deliver  bool              `json:"deliver,omitempty"` // system-channel messages: deliver the reply outbound
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ChannelSystem is the synthetic channel name for scheduler/heartbeat originated messages.
const ChannelSystem = "system"

// SessionKey derives the canonical session key for this message: {channel}:{chatId}.
func (m InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

// OutboundMessage represents a message to be sent to a channel.
type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}

// MessageRouter abstracts inbound/outbound message routing between channels and the agent runtime.
type MessageRouter interface {
	PublishInbound(msg InboundMessage) bool
	ConsumeInbound(ctx context.Context) (InboundMessage, bool)
	PublishOutbound(msg OutboundMessage) bool
	SubscribeOutbound(ctx context.Context) (OutboundMessage, bool)
}
