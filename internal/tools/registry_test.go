package tools

import (
	"context"
	"strings"
	"testing"
	"time"
)

type fakeTool struct {
	name string
	fn   func(ctx context.Context, args map[string]interface{}) *Result
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake tool " + f.name }
func (f *fakeTool) Parameters() map[string]interface{} {
	return objSchema(map[string]interface{}{"x": prop("string", "input")})
}
func (f *fakeTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return f.fn(ctx, args)
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(0)
	result := r.Execute(context.Background(), "nope", nil)
	if !result.IsError || result.ForLLM != "error: unknown tool nope" {
		t.Errorf("result = %+v", result)
	}
}

func TestExecuteTruncatesOversizedOutput(t *testing.T) {
	r := NewRegistry(0)
	r.Register(&fakeTool{name: "big", fn: func(ctx context.Context, args map[string]interface{}) *Result {
		return Ok(strings.Repeat("x", MaxResultChars+5000))
	}})

	result := r.Execute(context.Background(), "big", nil)
	if !strings.HasSuffix(result.ForLLM, "[truncated]") {
		t.Error("oversized output not truncated")
	}
	if len(result.ForLLM) > MaxResultChars+100 {
		t.Errorf("truncated output still %d chars", len(result.ForLLM))
	}
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	r := NewRegistry(0)
	r.Register(&fakeTool{name: "boom", fn: func(ctx context.Context, args map[string]interface{}) *Result {
		panic("kaboom")
	}})

	result := r.Execute(context.Background(), "boom", nil)
	if !result.IsError || !strings.Contains(result.ForLLM, "panicked") {
		t.Errorf("result = %+v", result)
	}
}

func TestExecuteAppliesTimeout(t *testing.T) {
	r := NewRegistry(50 * time.Millisecond)
	r.Register(&fakeTool{name: "slow", fn: func(ctx context.Context, args map[string]interface{}) *Result {
		select {
		case <-ctx.Done():
			return Err("cancelled: " + ctx.Err().Error())
		case <-time.After(5 * time.Second):
			return Ok("too late")
		}
	}})

	start := time.Now()
	result := r.Execute(context.Background(), "slow", nil)
	if time.Since(start) > time.Second {
		t.Fatal("timeout not applied")
	}
	if !result.IsError {
		t.Errorf("result = %+v", result)
	}
}

func TestProviderDefsSortedAndComplete(t *testing.T) {
	r := NewRegistry(0)
	r.Register(&fakeTool{name: "zeta", fn: func(context.Context, map[string]interface{}) *Result { return Ok("") }})
	r.Register(&fakeTool{name: "alpha", fn: func(context.Context, map[string]interface{}) *Result { return Ok("") }})

	defs := r.ProviderDefs()
	if len(defs) != 2 || defs[0].Function.Name != "alpha" || defs[1].Function.Name != "zeta" {
		t.Errorf("defs = %+v", defs)
	}
	if defs[0].Type != "function" || defs[0].Function.Parameters == nil {
		t.Errorf("def shape = %+v", defs[0])
	}
}

func TestArgHelpers(t *testing.T) {
	args := map[string]interface{}{
		"s": "text",
		"f": float64(42),
		"b": true,
		"n": "7",
	}
	if v, ok := StringArg(args, "s"); !ok || v != "text" {
		t.Errorf("StringArg = %q, %v", v, ok)
	}
	if _, ok := StringArg(args, "missing"); ok {
		t.Error("StringArg found a missing key")
	}
	if v, ok := IntArg(args, "f"); !ok || v != 42 {
		t.Errorf("IntArg(float64) = %d, %v", v, ok)
	}
	if v, ok := IntArg(args, "n"); !ok || v != 7 {
		t.Errorf("IntArg(string) = %d, %v", v, ok)
	}
	if !BoolArg(args, "b", false) || BoolArg(args, "missing", false) {
		t.Error("BoolArg mismatch")
	}
}
