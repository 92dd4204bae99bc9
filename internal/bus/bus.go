// Package bus implements the in-process message fabric between channels
// and the agent runtime: two bounded FIFO queues (inbound, outbound) with
// at-most-once, drop-on-full delivery.
package bus

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultCapacity is the per-queue capacity when none is configured.
const DefaultCapacity = 100

// MessageBus is a bounded MPMC queue pair. Publish never blocks: when a
// queue is full the message is dropped and counted. Consume blocks until a
// message arrives or the context is done.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage

	inboundDropped  atomic.Int64
	outboundDropped atomic.Int64
}

// NewMessageBus creates a bus with the given queue capacity (<=0 uses DefaultCapacity).
func NewMessageBus(capacity int) *MessageBus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MessageBus{
		inbound:  make(chan InboundMessage, capacity),
		outbound: make(chan OutboundMessage, capacity),
	}
}

// PublishInbound enqueues a message from a channel. Returns false when the
// queue is full and the message was dropped.
func (b *MessageBus) PublishInbound(msg InboundMessage) bool {
	select {
	case b.inbound <- msg:
		return true
	default:
		b.inboundDropped.Add(1)
		slog.Warn("bus.overflow", "queue", "inbound", "channel", msg.Channel, "chat_id", msg.ChatID)
		return false
	}
}

// ConsumeInbound blocks until an inbound message is available or ctx is done.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg := <-b.inbound:
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// ConsumeInboundTimeout polls the inbound queue with a timeout.
func (b *MessageBus) ConsumeInboundTimeout(timeout time.Duration) (InboundMessage, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-b.inbound:
		return msg, true
	case <-timer.C:
		return InboundMessage{}, false
	}
}

// PublishOutbound enqueues a message for channel delivery. Returns false when
// the queue is full and the message was dropped.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) bool {
	select {
	case b.outbound <- msg:
		return true
	default:
		b.outboundDropped.Add(1)
		slog.Warn("bus.overflow", "queue", "outbound", "channel", msg.Channel, "chat_id", msg.ChatID)
		return false
	}
}

// SubscribeOutbound blocks until an outbound message is available or ctx is done.
func (b *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg := <-b.outbound:
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

// SubscribeOutboundTimeout polls the outbound queue with a timeout.
func (b *MessageBus) SubscribeOutboundTimeout(timeout time.Duration) (OutboundMessage, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-b.outbound:
		return msg, true
	case <-timer.C:
		return OutboundMessage{}, false
	}
}

// InboundSize returns the current inbound queue depth.
func (b *MessageBus) InboundSize() int { return len(b.inbound) }

// OutboundSize returns the current outbound queue depth.
func (b *MessageBus) OutboundSize() int { return len(b.outbound) }

// Dropped returns the number of dropped inbound and outbound messages.
func (b *MessageBus) Dropped() (inbound, outbound int64) {
	return b.inboundDropped.Load(), b.outboundDropped.Load()
}
