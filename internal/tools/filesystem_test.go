package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/tinyclaw/internal/sandbox"
)

func testGuard(t *testing.T) *sandbox.Guard {
	t.Helper()
	return sandbox.NewGuard(t.TempDir(), true, nil)
}

func TestWriteReadEditRoundTrip(t *testing.T) {
	guard := testGuard(t)
	ctx := context.Background()

	write := &WriteFileTool{Guard: guard}
	if res := write.Execute(ctx, map[string]interface{}{"path": "notes/today.md", "content": "milk, eggs"}); res.IsError {
		t.Fatalf("write: %s", res.ForLLM)
	}

	read := &ReadFileTool{Guard: guard}
	res := read.Execute(ctx, map[string]interface{}{"path": "notes/today.md"})
	if res.IsError || res.ForLLM != "milk, eggs" {
		t.Fatalf("read: %+v", res)
	}

	edit := &EditFileTool{Guard: guard}
	res = edit.Execute(ctx, map[string]interface{}{"path": "notes/today.md", "old_text": "eggs", "new_text": "bread"})
	if res.IsError {
		t.Fatalf("edit: %s", res.ForLLM)
	}
	res = read.Execute(ctx, map[string]interface{}{"path": "notes/today.md"})
	if res.ForLLM != "milk, bread" {
		t.Errorf("after edit: %q", res.ForLLM)
	}
}

func TestEditRequiresUniqueMatch(t *testing.T) {
	guard := testGuard(t)
	ctx := context.Background()
	(&WriteFileTool{Guard: guard}).Execute(ctx, map[string]interface{}{"path": "f.txt", "content": "aaa aaa"})

	res := (&EditFileTool{Guard: guard}).Execute(ctx, map[string]interface{}{"path": "f.txt", "old_text": "aaa", "new_text": "b"})
	if !res.IsError || !strings.Contains(res.ForLLM, "must be unique") {
		t.Errorf("ambiguous edit accepted: %+v", res)
	}
}

func TestFileToolsDenyEscape(t *testing.T) {
	guard := testGuard(t)
	ctx := context.Background()

	cases := []struct {
		name string
		tool Tool
		args map[string]interface{}
	}{
		{"read", &ReadFileTool{Guard: guard}, map[string]interface{}{"path": "/etc/passwd"}},
		{"write", &WriteFileTool{Guard: guard}, map[string]interface{}{"path": "../../escape.txt", "content": "x"}},
		{"append", &AppendFileTool{Guard: guard}, map[string]interface{}{"path": "/tmp/other.txt", "content": "x"}},
		{"list", &ListFilesTool{Guard: guard}, map[string]interface{}{"path": "/etc"}},
	}
	for _, c := range cases {
		res := c.tool.Execute(ctx, c.args)
		if !res.IsError || !strings.HasPrefix(res.ForLLM, "error: Access denied") {
			t.Errorf("%s: %+v", c.name, res)
		}
	}
}

func TestAppendCreatesAndGrows(t *testing.T) {
	guard := testGuard(t)
	ctx := context.Background()
	app := &AppendFileTool{Guard: guard}

	app.Execute(ctx, map[string]interface{}{"path": "log.txt", "content": "one\n"})
	app.Execute(ctx, map[string]interface{}{"path": "log.txt", "content": "two\n"})

	data, err := os.ReadFile(filepath.Join(guard.Workspace(), "log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "one\ntwo\n" {
		t.Errorf("content = %q", data)
	}
}

func TestListFilesDefaultsToWorkspace(t *testing.T) {
	guard := testGuard(t)
	os.WriteFile(filepath.Join(guard.Workspace(), "a.txt"), []byte("hi"), 0644)
	os.Mkdir(filepath.Join(guard.Workspace(), "sub"), 0755)

	res := (&ListFilesTool{Guard: guard}).Execute(context.Background(), map[string]interface{}{})
	if res.IsError {
		t.Fatalf("list: %s", res.ForLLM)
	}
	if !strings.Contains(res.ForLLM, "a.txt") || !strings.Contains(res.ForLLM, "sub/") {
		t.Errorf("listing = %q", res.ForLLM)
	}
}

func TestExecRunsAndMergesOutput(t *testing.T) {
	guard := testGuard(t)
	e := &ExecTool{Guard: guard, Timeout: 10 * time.Second}

	res := e.Execute(context.Background(), map[string]interface{}{"command": "echo out; echo err 1>&2"})
	if res.IsError {
		t.Fatalf("exec: %s", res.ForLLM)
	}
	if !strings.Contains(res.ForLLM, "out") || !strings.Contains(res.ForLLM, "err") {
		t.Errorf("merged output = %q", res.ForLLM)
	}
}

func TestExecReportsExitStatus(t *testing.T) {
	e := &ExecTool{Guard: testGuard(t), Timeout: 10 * time.Second}
	res := e.Execute(context.Background(), map[string]interface{}{"command": "echo failing; exit 3"})
	if !res.IsError || !strings.Contains(res.ForLLM, "exit status 3") || !strings.Contains(res.ForLLM, "failing") {
		t.Errorf("result = %+v", res)
	}
}

func TestExecBlocksDeniedCommands(t *testing.T) {
	e := &ExecTool{Guard: testGuard(t), Timeout: 10 * time.Second}
	res := e.Execute(context.Background(), map[string]interface{}{"command": "sudo rm -rf /"})
	if !res.IsError || !strings.HasPrefix(res.ForLLM, "error: Access denied") {
		t.Errorf("result = %+v", res)
	}
}

func TestExecTimesOut(t *testing.T) {
	e := &ExecTool{Guard: testGuard(t), Timeout: 100 * time.Millisecond}
	start := time.Now()
	res := e.Execute(context.Background(), map[string]interface{}{"command": "sleep 10"})
	if time.Since(start) > 5*time.Second {
		t.Fatal("timeout not enforced")
	}
	if !res.IsError || !strings.Contains(res.ForLLM, "timed out") {
		t.Errorf("result = %+v", res)
	}
}
