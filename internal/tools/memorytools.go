package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/tinyclaw/internal/memory"
)

// MemorySearchTool queries the long-term memory index.
type MemorySearchTool struct {
	Store *memory.Store
}

func (t *MemorySearchTool) Name() string { return "memory_search" }
func (t *MemorySearchTool) Description() string {
	return "Search long-term memory notes for facts recorded in earlier conversations."
}
func (t *MemorySearchTool) Parameters() map[string]interface{} {
	return objSchema(map[string]interface{}{
		"query": prop("string", "Search terms; all must appear in a note"),
		"limit": prop("integer", "Maximum hits to return (default 5)"),
	}, "query")
}

func (t *MemorySearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	query, ok := StringArg(args, "query")
	if !ok || strings.TrimSpace(query) == "" {
		return Err("missing required argument: query")
	}
	limit, _ := IntArg(args, "limit")

	if err := t.Store.Reindex(ctx); err != nil {
		return Err("memory index unavailable: " + err.Error())
	}
	hits, err := t.Store.Search(ctx, query, limit)
	if err != nil {
		return Err("memory search failed: " + err.Error())
	}
	if len(hits) == 0 {
		return Ok("No memory notes match: " + query)
	}
	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "%s: %s\n", h.Path, h.Snippet)
	}
	return Ok(strings.TrimRight(b.String(), "\n"))
}

// MemoryStoreTool records a fact into long-term memory.
type MemoryStoreTool struct {
	Store *memory.Store
}

func (t *MemoryStoreTool) Name() string { return "memory_store" }
func (t *MemoryStoreTool) Description() string {
	return "Record a fact in long-term memory so it survives session compaction. Optionally name the note file to group related facts."
}
func (t *MemoryStoreTool) Parameters() map[string]interface{} {
	return objSchema(map[string]interface{}{
		"content": prop("string", "The fact to remember"),
		"file":    prop("string", "Note file name under memory/, default notes.md"),
	}, "content")
}

func (t *MemoryStoreTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	content, ok := StringArg(args, "content")
	if !ok || strings.TrimSpace(content) == "" {
		return Err("missing required argument: content")
	}
	file := OptionalString(args, "file")
	if err := t.Store.Store(ctx, file, content); err != nil {
		return Err("memory store failed: " + err.Error())
	}
	return Ok("Remembered.")
}
