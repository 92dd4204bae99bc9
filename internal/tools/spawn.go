package tools

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// SpawnFunc runs a task in a fresh session and reports the result
// asynchronously. key is the subagent's session key, origin the session that
// requested it.
type SpawnFunc func(key, origin, task string)

// SpawnTool launches a background subagent with an isolated session. The
// requesting session comes from the invocation context.
type SpawnTool struct {
	spawn SpawnFunc
}

func NewSpawnTool(spawn SpawnFunc) *SpawnTool {
	return &SpawnTool{spawn: spawn}
}

func (t *SpawnTool) Name() string { return "spawn" }
func (t *SpawnTool) Description() string {
	return "Run a task in a background subagent with its own fresh session. Returns immediately; the result is reported back when the subagent finishes."
}
func (t *SpawnTool) Parameters() map[string]interface{} {
	return objSchema(map[string]interface{}{
		"task": prop("string", "Self-contained task description for the subagent"),
	}, "task")
}

func (t *SpawnTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	task, ok := StringArg(args, "task")
	if !ok || strings.TrimSpace(task) == "" {
		return Err("missing required argument: task")
	}

	origin := InvocationFrom(ctx).SessionKey
	id := uuid.NewString()[:8]
	key := "spawn:" + id
	go t.spawn(key, origin, task)

	return Ok("Spawned subagent " + id + "; its result will arrive as a follow-up message.")
}
