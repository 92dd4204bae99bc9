// Package channels connects chat transports to the message bus.
package channels

import "context"

// Channel is one chat transport (CLI today; the interface leaves room for
// messaging platforms).
type Channel interface {
	Name() string
	// Start begins receiving; it must not block after setup completes.
	Start(ctx context.Context) error
	Stop() error
	// Send delivers one outbound message to chatID.
	Send(chatID, content string) error
	// IsAllowed filters senders; unauthorized messages are dropped at the
	// edge, before they reach the agent.
	IsAllowed(senderID string) bool
}
