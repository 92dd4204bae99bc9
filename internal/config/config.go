// Package config holds the TinyClaw runtime configuration: agent defaults,
// provider credentials, bus sizing, compaction thresholds, and tool settings.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Config is the root configuration object.
type Config struct {
	Agents    AgentsConfig    `json:"agents"`
	Providers ProvidersConfig `json:"providers"`
	Bus       BusConfig       `json:"bus"`
	Channels  ChannelsConfig  `json:"channels"`
	Tools     ToolsConfig     `json:"tools"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
}

// AgentsConfig configures the agent loop defaults.
type AgentsConfig struct {
	Defaults AgentDefaults `json:"defaults"`
}

// AgentDefaults are per-loop settings.
type AgentDefaults struct {
	Workspace           string  `json:"workspace"`
	RestrictToWorkspace bool    `json:"restrict_to_workspace"`
	Model               string  `json:"model"`
	MaxTokens           int     `json:"max_tokens"`
	Temperature         float64 `json:"temperature"`
	MaxToolIterations   int     `json:"max_tool_iterations"`
	ContextWindow       int     `json:"context_window"`
	Workers             int     `json:"workers"`

	Compaction CompactionConfig `json:"compaction"`
}

// CompactionConfig controls session summarization thresholds.
type CompactionConfig struct {
	// MessageThreshold triggers summarization when history exceeds this count.
	MessageThreshold int `json:"message_threshold"`
	// TokenShare triggers summarization when the chars/4 token estimate
	// exceeds this fraction of the context window.
	TokenShare float64 `json:"token_share"`
	// KeepLastMessages is the recent tail preserved verbatim.
	KeepLastMessages int `json:"keep_last_messages"`
	// BatchChars bounds the size of each summarization batch.
	BatchChars int `json:"batch_chars"`
}

// ProvidersConfig holds per-provider credentials and endpoints.
type ProvidersConfig struct {
	OpenAI     ProviderConfig `json:"openai"`
	OpenRouter ProviderConfig `json:"openrouter"`
	DeepSeek   ProviderConfig `json:"deepseek"`
	Zhipu      ProviderConfig `json:"zhipu"`
	Groq       ProviderConfig `json:"groq"`
	Ollama     ProviderConfig `json:"ollama"`
}

// ProviderConfig is one OpenAI-compatible endpoint.
type ProviderConfig struct {
	APIKey  string `json:"api_key"`
	APIBase string `json:"api_base"`
}

// BusConfig sizes the message bus queues.
type BusConfig struct {
	Capacity int `json:"capacity"`
}

// ChannelsConfig configures channel adapters.
type ChannelsConfig struct {
	CLI CLIChannelConfig `json:"cli"`
}

// CLIChannelConfig configures the terminal channel.
type CLIChannelConfig struct {
	Enabled bool `json:"enabled"`
}

// ToolsConfig configures built-in tools.
type ToolsConfig struct {
	ExecTimeoutSeconds int            `json:"exec_timeout_seconds"`
	ToolTimeoutSeconds int            `json:"tool_timeout_seconds"`
	Web                WebToolsConfig `json:"web"`
	// CommandBlacklist fully replaces the default deny patterns when non-nil.
	CommandBlacklist []string `json:"command_blacklist"`
}

// WebToolsConfig configures web search/fetch.
type WebToolsConfig struct {
	MaxResults     int     `json:"max_results"`
	RequestsPerSec float64 `json:"requests_per_sec"`
}

// HeartbeatConfig configures the periodic self-prompt.
type HeartbeatConfig struct {
	Enabled         bool `json:"enabled"`
	IntervalSeconds int  `json:"interval_seconds"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Agents: AgentsConfig{
			Defaults: AgentDefaults{
				Workspace:           "~/.tinyclaw/workspace",
				RestrictToWorkspace: true,
				Model:               "gpt-4o",
				MaxTokens:           8192,
				Temperature:         0.7,
				MaxToolIterations:   20,
				ContextWindow:       128000,
				Workers:             1,
				Compaction: CompactionConfig{
					MessageThreshold: 40,
					TokenShare:       0.75,
					KeepLastMessages: 10,
					BatchChars:       8000,
				},
			},
		},
		Providers: ProvidersConfig{
			OpenAI:     ProviderConfig{APIBase: "https://api.openai.com/v1"},
			OpenRouter: ProviderConfig{APIBase: "https://openrouter.ai/api/v1"},
			DeepSeek:   ProviderConfig{APIBase: "https://api.deepseek.com/v1"},
			Zhipu:      ProviderConfig{APIBase: "https://open.bigmodel.cn/api/paas/v4"},
			Groq:       ProviderConfig{APIBase: "https://api.groq.com/openai/v1"},
			Ollama:     ProviderConfig{APIBase: "http://localhost:11434/v1"},
		},
		Bus:      BusConfig{Capacity: 100},
		Channels: ChannelsConfig{CLI: CLIChannelConfig{Enabled: true}},
		Tools: ToolsConfig{
			ExecTimeoutSeconds: 60,
			ToolTimeoutSeconds: 120,
			Web:                WebToolsConfig{MaxResults: 5, RequestsPerSec: 1},
		},
		Heartbeat: HeartbeatConfig{Enabled: false, IntervalSeconds: 1800},
	}
}

// WorkspacePath returns the agent workspace with ~ expanded.
func (c *Config) WorkspacePath() string {
	return ExpandHome(c.Agents.Defaults.Workspace)
}

// SessionsPath returns the session storage directory.
func (c *Config) SessionsPath() string {
	return filepath.Join(c.WorkspacePath(), "sessions")
}

// CronPath returns the cron job store file.
func (c *Config) CronPath() string {
	return filepath.Join(c.WorkspacePath(), "cron", "jobs.json")
}

// SkillsPath returns the skills directory.
func (c *Config) SkillsPath() string {
	return filepath.Join(c.WorkspacePath(), "skills")
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// ResolveProvider maps a model name to the provider endpoint serving it.
// OpenRouter models carry a vendor prefix ("anthropic/..."), glm models go to
// Zhipu, deepseek models to DeepSeek, and everything else to OpenAI unless a
// local Ollama base is the only one configured.
func (c *Config) ResolveProvider(model string) (apiBase, apiKey string) {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "/"):
		return c.Providers.OpenRouter.APIBase, c.Providers.OpenRouter.APIKey
	case strings.Contains(m, "glm"):
		return c.Providers.Zhipu.APIBase, c.Providers.Zhipu.APIKey
	case strings.Contains(m, "deepseek"):
		return c.Providers.DeepSeek.APIBase, c.Providers.DeepSeek.APIKey
	case strings.Contains(m, "llama") && c.Providers.Groq.APIKey != "":
		return c.Providers.Groq.APIBase, c.Providers.Groq.APIKey
	case c.Providers.OpenAI.APIKey == "" && c.Providers.Ollama.APIBase != "":
		return c.Providers.Ollama.APIBase, c.Providers.Ollama.APIKey
	default:
		return c.Providers.OpenAI.APIBase, c.Providers.OpenAI.APIKey
	}
}
