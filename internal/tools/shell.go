package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/nextlevelbuilder/tinyclaw/internal/sandbox"
)

// ExecTool runs a shell command inside the workspace.
type ExecTool struct {
	Guard   *sandbox.Guard
	Timeout time.Duration
}

func (t *ExecTool) Name() string { return "exec" }
func (t *ExecTool) Description() string {
	return "Execute a shell command in the workspace. Returns combined stdout and stderr with the exit status."
}
func (t *ExecTool) Parameters() map[string]interface{} {
	return objSchema(map[string]interface{}{
		"command":     prop("string", "Shell command to execute"),
		"working_dir": prop("string", "Working directory; defaults to the workspace root"),
	}, "command")
}

func (t *ExecTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	command, ok := StringArg(args, "command")
	if !ok || strings.TrimSpace(command) == "" {
		return Err("missing required argument: command")
	}

	if err := t.Guard.CheckCommand(command); err != nil {
		return Err("Access denied: command blocked by security policy")
	}
	workDir, err := t.Guard.CheckWorkingDir(OptionalString(args, "working_dir"))
	if err != nil {
		return Err("Access denied: working_dir outside workspace")
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = workDir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	output := strings.TrimRight(out.String(), "\n")

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Err(fmt.Sprintf("command timed out after %s\n%s", timeout, output))
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return Err(fmt.Sprintf("exit status %d\n%s", exitErr.ExitCode(), output))
		}
		return Err(runErr.Error())
	}
	if output == "" {
		return Ok("(no output)")
	}
	return Ok(output)
}
