package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nextlevelbuilder/tinyclaw/internal/sandbox"
)

// maxReadBytes caps read_file output before registry-level truncation.
const maxReadBytes = 256 * 1024

// ReadFileTool reads a file from the workspace.
type ReadFileTool struct {
	Guard *sandbox.Guard
}

func (t *ReadFileTool) Name() string { return "read_file" }
func (t *ReadFileTool) Description() string {
	return "Read the contents of a file. Path is relative to the workspace unless absolute."
}
func (t *ReadFileTool) Parameters() map[string]interface{} {
	return objSchema(map[string]interface{}{
		"path": prop("string", "Path of the file to read"),
	}, "path")
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path, ok := StringArg(args, "path")
	if !ok {
		return Err("missing required argument: path")
	}
	resolved, err := t.Guard.CheckFilePath(path)
	if err != nil {
		return Err("Access denied: " + path)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return Err("cannot read " + path + ": " + err.Error())
	}
	if info.IsDir() {
		return Err(path + " is a directory, use list_files")
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return Err("cannot read " + path + ": " + err.Error())
	}
	if len(data) > maxReadBytes {
		data = data[:maxReadBytes]
		return Ok(string(data) + "\n… [file truncated]")
	}
	return Ok(string(data))
}

// WriteFileTool writes (or overwrites) a file, creating parent directories.
type WriteFileTool struct {
	Guard *sandbox.Guard
}

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Write content to a file, creating it and any parent directories. Overwrites existing content."
}
func (t *WriteFileTool) Parameters() map[string]interface{} {
	return objSchema(map[string]interface{}{
		"path":    prop("string", "Path of the file to write"),
		"content": prop("string", "Full content to write"),
	}, "path", "content")
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path, ok := StringArg(args, "path")
	if !ok {
		return Err("missing required argument: path")
	}
	content, ok := StringArg(args, "content")
	if !ok {
		return Err("missing required argument: content")
	}
	resolved, err := t.Guard.CheckFilePath(path)
	if err != nil {
		return Err("Access denied: " + path)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return Err("cannot create directory for " + path + ": " + err.Error())
	}
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		return Err("cannot write " + path + ": " + err.Error())
	}
	return Ok(fmt.Sprintf("Wrote %d bytes to %s", len(content), path))
}

// AppendFileTool appends content to a file, creating it when absent.
type AppendFileTool struct {
	Guard *sandbox.Guard
}

func (t *AppendFileTool) Name() string { return "append_file" }
func (t *AppendFileTool) Description() string {
	return "Append content to the end of a file, creating it if it does not exist."
}
func (t *AppendFileTool) Parameters() map[string]interface{} {
	return objSchema(map[string]interface{}{
		"path":    prop("string", "Path of the file to append to"),
		"content": prop("string", "Content to append"),
	}, "path", "content")
}

func (t *AppendFileTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path, ok := StringArg(args, "path")
	if !ok {
		return Err("missing required argument: path")
	}
	content, ok := StringArg(args, "content")
	if !ok {
		return Err("missing required argument: content")
	}
	resolved, err := t.Guard.CheckFilePath(path)
	if err != nil {
		return Err("Access denied: " + path)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return Err("cannot create directory for " + path + ": " + err.Error())
	}
	f, err := os.OpenFile(resolved, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return Err("cannot open " + path + ": " + err.Error())
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return Err("cannot append to " + path + ": " + err.Error())
	}
	return Ok(fmt.Sprintf("Appended %d bytes to %s", len(content), path))
}

// EditFileTool replaces an exact substring in a file.
type EditFileTool struct {
	Guard *sandbox.Guard
}

func (t *EditFileTool) Name() string { return "edit_file" }
func (t *EditFileTool) Description() string {
	return "Replace an exact text snippet in a file. old_text must occur exactly once."
}
func (t *EditFileTool) Parameters() map[string]interface{} {
	return objSchema(map[string]interface{}{
		"path":     prop("string", "Path of the file to edit"),
		"old_text": prop("string", "Exact text to replace; must be unique in the file"),
		"new_text": prop("string", "Replacement text"),
	}, "path", "old_text", "new_text")
}

func (t *EditFileTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path, ok := StringArg(args, "path")
	if !ok {
		return Err("missing required argument: path")
	}
	oldText, ok := StringArg(args, "old_text")
	if !ok || oldText == "" {
		return Err("missing required argument: old_text")
	}
	newText := OptionalString(args, "new_text")

	resolved, err := t.Guard.CheckFilePath(path)
	if err != nil {
		return Err("Access denied: " + path)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return Err("cannot read " + path + ": " + err.Error())
	}
	content := string(data)
	switch n := strings.Count(content, oldText); {
	case n == 0:
		return Err("old_text not found in " + path)
	case n > 1:
		return Err(fmt.Sprintf("old_text occurs %d times in %s, must be unique", n, path))
	}
	content = strings.Replace(content, oldText, newText, 1)
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		return Err("cannot write " + path + ": " + err.Error())
	}
	return Ok("Edited " + path)
}

// ListFilesTool lists a directory.
type ListFilesTool struct {
	Guard *sandbox.Guard
}

func (t *ListFilesTool) Name() string { return "list_files" }
func (t *ListFilesTool) Description() string {
	return "List the entries of a directory. Defaults to the workspace root."
}
func (t *ListFilesTool) Parameters() map[string]interface{} {
	return objSchema(map[string]interface{}{
		"path": prop("string", "Directory to list; defaults to the workspace root"),
	})
}

func (t *ListFilesTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path := OptionalString(args, "path")
	if path == "" {
		path = t.Guard.Workspace()
	}
	resolved, err := t.Guard.CheckFilePath(path)
	if err != nil {
		return Err("Access denied: " + path)
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return Err("cannot list " + path + ": " + err.Error())
	}
	if len(entries) == 0 {
		return Ok("(empty directory)")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var b strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintf(&b, "%s/\n", e.Name())
			continue
		}
		info, err := e.Info()
		if err != nil {
			fmt.Fprintf(&b, "%s\n", e.Name())
			continue
		}
		fmt.Fprintf(&b, "%s (%d bytes)\n", e.Name(), info.Size())
	}
	return Ok(strings.TrimRight(b.String(), "\n"))
}
