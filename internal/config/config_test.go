package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agents.Defaults.MaxToolIterations != 20 {
		t.Errorf("MaxToolIterations = %d, want 20", cfg.Agents.Defaults.MaxToolIterations)
	}
	if cfg.Bus.Capacity != 100 {
		t.Errorf("Bus.Capacity = %d, want 100", cfg.Bus.Capacity)
	}
}

func TestLoadJSON5WithComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		// agent settings
		agents: {defaults: {model: "glm-4-plus", max_tool_iterations: 5}},
		bus: {capacity: 7},
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agents.Defaults.Model != "glm-4-plus" {
		t.Errorf("Model = %q", cfg.Agents.Defaults.Model)
	}
	if cfg.Agents.Defaults.MaxToolIterations != 5 {
		t.Errorf("MaxToolIterations = %d, want 5", cfg.Agents.Defaults.MaxToolIterations)
	}
	if cfg.Bus.Capacity != 7 {
		t.Errorf("Bus.Capacity = %d, want 7", cfg.Bus.Capacity)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TINYCLAW_MODEL", "deepseek-chat")
	t.Setenv("TINYCLAW_BUS_CAPACITY", "3")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Agents.Defaults.Model != "deepseek-chat" {
		t.Errorf("Model = %q, want env override", cfg.Agents.Defaults.Model)
	}
	if cfg.Bus.Capacity != 3 {
		t.Errorf("Bus.Capacity = %d, want 3", cfg.Bus.Capacity)
	}
}

func TestResolveProvider(t *testing.T) {
	cfg := Default()
	cfg.Providers.OpenAI.APIKey = "sk-openai"
	cfg.Providers.OpenRouter.APIKey = "sk-or"
	cfg.Providers.Zhipu.APIKey = "sk-glm"

	tests := []struct {
		model    string
		wantBase string
		wantKey  string
	}{
		{"gpt-4o", "https://api.openai.com/v1", "sk-openai"},
		{"anthropic/claude-sonnet-4-5", "https://openrouter.ai/api/v1", "sk-or"},
		{"glm-4-plus", "https://open.bigmodel.cn/api/paas/v4", "sk-glm"},
	}
	for _, tt := range tests {
		base, key := cfg.ResolveProvider(tt.model)
		if base != tt.wantBase || key != tt.wantKey {
			t.Errorf("ResolveProvider(%q) = (%q, %q), want (%q, %q)", tt.model, base, key, tt.wantBase, tt.wantKey)
		}
	}
}

func TestExpandHome(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := ExpandHome("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("ExpandHome(~/x) = %q", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandHome(/abs/path) = %q", got)
	}
}
