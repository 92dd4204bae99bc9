package tools

import (
	"context"
	"strings"
)

// SendFunc delivers a message to a channel outside the current reply flow.
type SendFunc func(channel, chatID, content string) error

// MessageTool sends a proactive message to a chat channel. The result is
// silent so the sent text does not echo back into the reply. The target
// defaults to the conversation carried by the invocation context.
type MessageTool struct {
	send SendFunc
}

func NewMessageTool(send SendFunc) *MessageTool {
	return &MessageTool{send: send}
}

func (t *MessageTool) Name() string { return "send_message" }
func (t *MessageTool) Description() string {
	return "Send a message to a chat channel immediately, outside the normal reply. Use for progress updates or notifications."
}
func (t *MessageTool) Parameters() map[string]interface{} {
	return objSchema(map[string]interface{}{
		"content": prop("string", "Message text to send"),
		"channel": prop("string", "Target channel; defaults to the current conversation's channel"),
		"chat_id": prop("string", "Target chat; defaults to the current conversation"),
	}, "content")
}

func (t *MessageTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	content, ok := StringArg(args, "content")
	if !ok || strings.TrimSpace(content) == "" {
		return Err("missing required argument: content")
	}
	inv := InvocationFrom(ctx)
	channel := OptionalString(args, "channel")
	if channel == "" {
		channel = inv.Channel
	}
	chatID := OptionalString(args, "chat_id")
	if chatID == "" {
		chatID = inv.ChatID
	}
	if channel == "" || chatID == "" {
		return Err("no target channel: provide channel and chat_id")
	}
	if err := t.send(channel, chatID, content); err != nil {
		return Err("send failed: " + err.Error())
	}
	return SilentOk("Message sent to " + channel + ":" + chatID)
}
