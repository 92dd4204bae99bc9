// Package heartbeat periodically wakes the agent with the checklist in
// <workspace>/memory/HEARTBEAT.md so it can act without user input.
package heartbeat

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nextlevelbuilder/tinyclaw/internal/bus"
)

// OKToken in a heartbeat response means "nothing to report"; such responses
// are suppressed instead of delivered.
const OKToken = "HEARTBEAT_OK"

// prompt frames the checklist so the model knows silence is acceptable.
const prompt = "This is a scheduled heartbeat. Review the checklist below and take any action that is due. " +
	"If nothing needs attention, reply with exactly HEARTBEAT_OK.\n\n"

// Runner injects heartbeat messages on a fixed interval.
type Runner struct {
	workspace string
	interval  time.Duration
	inject    func(msg bus.InboundMessage)
	busy      func() bool
}

// NewRunner builds a heartbeat runner. inject hands the synthetic message to
// the agent (typically MessageBus.PublishInbound).
func NewRunner(workspace string, interval time.Duration, inject func(bus.InboundMessage)) *Runner {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Runner{workspace: workspace, interval: interval, inject: inject}
}

// SetBusyCheck installs a predicate; a beat is skipped while it reports true,
// so heartbeats never pile up behind real work.
func (r *Runner) SetBusyCheck(busy func() bool) { r.busy = busy }

// Run ticks until ctx is cancelled. Every tick re-reads HEARTBEAT.md; a
// missing or effectively empty checklist skips the beat entirely, saving an
// LLM round trip.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	slog.Info("heartbeat.started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("heartbeat.stopped")
			return
		case <-ticker.C:
			r.beat()
		}
	}
}

func (r *Runner) beat() {
	if r.busy != nil && r.busy() {
		slog.Debug("heartbeat.skipped", "reason", "agent busy")
		return
	}
	checklist, ok := r.checklist()
	if !ok {
		slog.Debug("heartbeat.skipped", "reason", "empty checklist")
		return
	}
	r.inject(bus.InboundMessage{
		Channel:  bus.ChannelSystem,
		SenderID: "heartbeat",
		ChatID:   "heartbeat",
		Content:  prompt + checklist,
		Metadata: map[string]string{"origin": "heartbeat"},
	})
}

// checklist loads HEARTBEAT.md and reports whether it has actionable
// content. Comments and blank lines do not count.
func (r *Runner) checklist() (string, bool) {
	data, err := os.ReadFile(filepath.Join(r.workspace, "memory", "HEARTBEAT.md"))
	if err != nil {
		return "", false
	}
	content := string(data)
	if !hasActionableContent(content) {
		return "", false
	}
	return content, true
}

func hasActionableContent(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "<!--") {
			continue
		}
		return true
	}
	return false
}

// ShouldSuppress reports whether a heartbeat response is the "all quiet"
// acknowledgement and needs no delivery.
func ShouldSuppress(response string) bool {
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return true
	}
	if !strings.Contains(trimmed, OKToken) {
		return false
	}
	// The token plus minor decoration still counts as quiet; substantial
	// text around it is a real report.
	stripped := strings.TrimSpace(strings.ReplaceAll(trimmed, OKToken, ""))
	return len(stripped) <= 20
}
