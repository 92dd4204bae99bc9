package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nextlevelbuilder/tinyclaw/internal/scheduler"
)

// CronTool lets the model manage its own scheduled jobs. New jobs target the
// conversation carried by the invocation context.
type CronTool struct {
	sched *scheduler.Scheduler
}

func NewCronTool(s *scheduler.Scheduler) *CronTool {
	return &CronTool{sched: s}
}

func (t *CronTool) Name() string { return "cron" }
func (t *CronTool) Description() string {
	return "Manage scheduled jobs: add recurring reminders (interval or cron expression), one-shot timers, list, enable, disable, or remove jobs."
}
func (t *CronTool) Parameters() map[string]interface{} {
	return objSchema(map[string]interface{}{
		"action":           prop("string", "One of: add, list, remove, enable, disable"),
		"name":             prop("string", "Human-readable job name (add)"),
		"message":          prop("string", "Message injected when the job fires (add)"),
		"every_seconds":    prop("integer", "Recurring interval in seconds (add)"),
		"at":               prop("string", "One-shot firing time, RFC 3339 (add)"),
		"cron":             prop("string", "5-field cron expression (add)"),
		"deliver":          prop("boolean", "Deliver the agent's response to the channel (add, default false)"),
		"delete_after_run": prop("boolean", "Remove the job once it has fired (add, default false)"),
		"job_id":           prop("string", "Job ID (remove, enable, disable)"),
	}, "action")
}

func (t *CronTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	action, ok := StringArg(args, "action")
	if !ok {
		return Err("missing required argument: action")
	}

	switch action {
	case "add":
		return t.add(ctx, args)
	case "list":
		return t.list()
	case "remove":
		return t.withJob(args, func(id string) *Result {
			ok, err := t.sched.Remove(id)
			if err != nil {
				return Err("remove failed: " + err.Error())
			}
			if !ok {
				return Err("no job with id " + id)
			}
			return Ok("Removed job " + id)
		})
	case "enable", "disable":
		return t.withJob(args, func(id string) *Result {
			ok, err := t.sched.Enable(id, action == "enable")
			if err != nil {
				return Err(action + " failed: " + err.Error())
			}
			if !ok {
				return Err("no job with id " + id)
			}
			verb := "Enabled"
			if action == "disable" {
				verb = "Disabled"
			}
			return Ok(verb + " job " + id)
		})
	default:
		return Err("unknown action " + action + "; use add, list, remove, enable, or disable")
	}
}

func (t *CronTool) withJob(args map[string]interface{}, fn func(id string) *Result) *Result {
	id, ok := StringArg(args, "job_id")
	if !ok || id == "" {
		return Err("missing required argument: job_id")
	}
	return fn(id)
}

func (t *CronTool) add(ctx context.Context, args map[string]interface{}) *Result {
	message, ok := StringArg(args, "message")
	if !ok || strings.TrimSpace(message) == "" {
		return Err("missing required argument: message")
	}
	name := OptionalString(args, "name")
	if name == "" {
		name = message
		if len(name) > 40 {
			name = name[:40]
		}
	}

	var sched scheduler.Schedule
	switch {
	case args["every_seconds"] != nil:
		secs, ok := IntArg(args, "every_seconds")
		if !ok || secs <= 0 {
			return Err("every_seconds must be a positive integer")
		}
		sched = scheduler.Schedule{Kind: "interval", EverySeconds: int64(secs)}
	case OptionalString(args, "at") != "":
		at, err := time.Parse(time.RFC3339, OptionalString(args, "at"))
		if err != nil {
			return Err("at must be RFC 3339, e.g. 2026-01-02T15:04:05Z: " + err.Error())
		}
		sched = scheduler.Schedule{Kind: "at", AtMs: at.UnixMilli()}
	case OptionalString(args, "cron") != "":
		sched = scheduler.Schedule{Kind: "cron", Expr: OptionalString(args, "cron")}
	default:
		return Err("schedule required: one of every_seconds, at, or cron")
	}

	inv := InvocationFrom(ctx)
	job, err := t.sched.Add(name, sched, scheduler.Payload{
		Channel: inv.Channel,
		ChatID:  inv.ChatID,
		Message: message,
		Deliver: BoolArg(args, "deliver", false),
	}, BoolArg(args, "delete_after_run", false))
	if err != nil {
		return Err("add failed: " + err.Error())
	}
	return Ok(fmt.Sprintf("Scheduled job %s (%s), next run %s",
		job.ID, job.Name, time.UnixMilli(job.State.NextRunMs).Format(time.RFC3339)))
}

func (t *CronTool) list() *Result {
	jobs := t.sched.List()
	if len(jobs) == 0 {
		return Ok("No scheduled jobs.")
	}
	var b strings.Builder
	for _, j := range jobs {
		status := "enabled"
		if !j.Enabled {
			status = "disabled"
			if j.State.LastError != "" {
				status = "disabled (" + j.State.LastError + ")"
			}
		}
		next := "-"
		if j.State.NextRunMs > 0 {
			next = time.UnixMilli(j.State.NextRunMs).Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "%s  %-20s %s  next=%s runs=%d\n", j.ID, j.Name, status, next, j.State.RunCount)
	}
	return Ok(strings.TrimRight(b.String(), "\n"))
}
