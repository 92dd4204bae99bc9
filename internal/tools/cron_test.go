package tools

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/tinyclaw/internal/scheduler"
)

func newCronTool(t *testing.T) *CronTool {
	t.Helper()
	s, err := scheduler.NewScheduler(filepath.Join(t.TempDir(), "jobs.json"))
	if err != nil {
		t.Fatal(err)
	}
	return NewCronTool(s)
}

func TestCronAddListRemove(t *testing.T) {
	ct := newCronTool(t)
	ctx := invocationCtx("cli", "default")

	res := ct.Execute(ctx, map[string]interface{}{
		"action":        "add",
		"name":          "reminder",
		"message":       "stand up",
		"every_seconds": float64(300),
	})
	if res.IsError {
		t.Fatalf("add: %s", res.ForLLM)
	}

	res = ct.Execute(ctx, map[string]interface{}{"action": "list"})
	if res.IsError || !strings.Contains(res.ForLLM, "reminder") {
		t.Fatalf("list: %+v", res)
	}
	// First whitespace-separated token of the listing is the job ID.
	jobID := strings.Fields(res.ForLLM)[0]

	res = ct.Execute(ctx, map[string]interface{}{"action": "remove", "job_id": jobID})
	if res.IsError {
		t.Fatalf("remove: %s", res.ForLLM)
	}
	res = ct.Execute(ctx, map[string]interface{}{"action": "list"})
	if res.ForLLM != "No scheduled jobs." {
		t.Errorf("list after remove: %q", res.ForLLM)
	}
}

func TestCronAddTargetsInvocationConversation(t *testing.T) {
	s, err := scheduler.NewScheduler(filepath.Join(t.TempDir(), "jobs.json"))
	if err != nil {
		t.Fatal(err)
	}
	ct := NewCronTool(s)

	res := ct.Execute(invocationCtx("telegram", "42"), map[string]interface{}{
		"action": "add", "message": "water the plants", "every_seconds": float64(60),
	})
	if res.IsError {
		t.Fatalf("add: %s", res.ForLLM)
	}

	jobs := s.List()
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
	if jobs[0].Payload.Channel != "telegram" || jobs[0].Payload.ChatID != "42" {
		t.Errorf("payload target = %s:%s, want telegram:42", jobs[0].Payload.Channel, jobs[0].Payload.ChatID)
	}
}

func TestCronAddRequiresSchedule(t *testing.T) {
	ct := newCronTool(t)
	res := ct.Execute(context.Background(), map[string]interface{}{"action": "add", "message": "x"})
	if !res.IsError || !strings.Contains(res.ForLLM, "schedule required") {
		t.Errorf("result = %+v", res)
	}
}

func TestCronAddRejectsBadTimestamp(t *testing.T) {
	ct := newCronTool(t)
	res := ct.Execute(context.Background(), map[string]interface{}{
		"action": "add", "message": "x", "at": "tomorrow noon",
	})
	if !res.IsError || !strings.Contains(res.ForLLM, "RFC 3339") {
		t.Errorf("result = %+v", res)
	}
}

func TestCronUnknownAction(t *testing.T) {
	ct := newCronTool(t)
	res := ct.Execute(context.Background(), map[string]interface{}{"action": "explode"})
	if !res.IsError || !strings.Contains(res.ForLLM, "unknown action") {
		t.Errorf("result = %+v", res)
	}
}
