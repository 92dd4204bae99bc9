// Package cli is the terminal transport: stdin lines become inbound
// messages, replies print to stdout.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nextlevelbuilder/tinyclaw/internal/bus"
)

// ChatID is the single conversation a terminal session represents.
const ChatID = "default"

// Channel reads lines from stdin and publishes them inbound.
type Channel struct {
	msgBus *bus.MessageBus
	in     io.Reader
	out    io.Writer
	cancel context.CancelFunc
}

func New(msgBus *bus.MessageBus) *Channel {
	return &Channel{msgBus: msgBus, in: os.Stdin, out: os.Stdout}
}

func (c *Channel) Name() string { return "cli" }

// IsAllowed always passes: the terminal user owns the process.
func (c *Channel) IsAllowed(string) bool { return true }

func (c *Channel) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.readLoop(ctx)
	return nil
}

func (c *Channel) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *Channel) readLoop(ctx context.Context) {
	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !c.msgBus.PublishInbound(bus.InboundMessage{
			Channel:  c.Name(),
			SenderID: "user",
			ChatID:   ChatID,
			Content:  line,
		}) {
			fmt.Fprintln(c.out, "(agent busy, message dropped)")
		}
	}
}

func (c *Channel) Send(chatID, content string) error {
	_, err := fmt.Fprintln(c.out, content)
	return err
}
