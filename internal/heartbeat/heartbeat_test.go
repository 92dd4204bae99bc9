package heartbeat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/tinyclaw/internal/bus"
)

func writeChecklist(t *testing.T, ws, content string) {
	t.Helper()
	dir := filepath.Join(ws, "memory")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "HEARTBEAT.md"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestBeatInjectsChecklist(t *testing.T) {
	ws := t.TempDir()
	writeChecklist(t, ws, "# Checklist\n- water the plants\n")

	var got []bus.InboundMessage
	r := NewRunner(ws, time.Minute, func(m bus.InboundMessage) { got = append(got, m) })
	r.beat()

	if len(got) != 1 {
		t.Fatalf("injected %d messages, want 1", len(got))
	}
	m := got[0]
	if m.Channel != bus.ChannelSystem || m.SenderID != "heartbeat" {
		t.Errorf("message = %+v", m)
	}
	if !strings.Contains(m.Content, "water the plants") {
		t.Errorf("checklist missing from content: %q", m.Content)
	}
	if m.Deliver {
		t.Error("heartbeat message must not force delivery")
	}
}

func TestBeatSkipsMissingChecklist(t *testing.T) {
	var count int
	r := NewRunner(t.TempDir(), time.Minute, func(bus.InboundMessage) { count++ })
	r.beat()
	if count != 0 {
		t.Errorf("beat with no checklist injected %d messages", count)
	}
}

func TestBeatSkipsEffectivelyEmptyChecklist(t *testing.T) {
	ws := t.TempDir()
	writeChecklist(t, ws, "# Heartbeat\n\n<!-- add tasks here -->\n\n")

	var count int
	r := NewRunner(ws, time.Minute, func(bus.InboundMessage) { count++ })
	r.beat()
	if count != 0 {
		t.Errorf("empty checklist still injected %d messages", count)
	}
}

func TestBeatSkipsWhileBusy(t *testing.T) {
	ws := t.TempDir()
	writeChecklist(t, ws, "- do the thing\n")

	var count int
	r := NewRunner(ws, time.Minute, func(bus.InboundMessage) { count++ })
	r.SetBusyCheck(func() bool { return true })
	r.beat()
	if count != 0 {
		t.Errorf("busy agent still received %d heartbeats", count)
	}

	r.SetBusyCheck(func() bool { return false })
	r.beat()
	if count != 1 {
		t.Errorf("idle agent received %d heartbeats, want 1", count)
	}
}

func TestShouldSuppress(t *testing.T) {
	cases := []struct {
		response string
		want     bool
	}{
		{"HEARTBEAT_OK", true},
		{"  HEARTBEAT_OK.  ", true},
		{"", true},
		{"All done! HEARTBEAT_OK", true},
		{"HEARTBEAT_OK, but I noticed the backup job failed twice and needs attention", false},
		{"The deploy finished successfully.", false},
	}
	for _, c := range cases {
		if got := ShouldSuppress(c.response); got != c.want {
			t.Errorf("ShouldSuppress(%q) = %v, want %v", c.response, got, c.want)
		}
	}
}
