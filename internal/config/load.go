package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults + env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	envStr("TINYCLAW_OPENAI_API_KEY", &c.Providers.OpenAI.APIKey)
	envStr("TINYCLAW_OPENAI_API_BASE", &c.Providers.OpenAI.APIBase)
	envStr("TINYCLAW_OPENROUTER_API_KEY", &c.Providers.OpenRouter.APIKey)
	envStr("TINYCLAW_DEEPSEEK_API_KEY", &c.Providers.DeepSeek.APIKey)
	envStr("TINYCLAW_ZHIPU_API_KEY", &c.Providers.Zhipu.APIKey)
	envStr("TINYCLAW_GROQ_API_KEY", &c.Providers.Groq.APIKey)
	envStr("TINYCLAW_OLLAMA_API_BASE", &c.Providers.Ollama.APIBase)

	envStr("TINYCLAW_MODEL", &c.Agents.Defaults.Model)
	envStr("TINYCLAW_WORKSPACE", &c.Agents.Defaults.Workspace)
	envInt("TINYCLAW_MAX_TOOL_ITERATIONS", &c.Agents.Defaults.MaxToolIterations)
	envInt("TINYCLAW_WORKERS", &c.Agents.Defaults.Workers)
	envInt("TINYCLAW_BUS_CAPACITY", &c.Bus.Capacity)
	envInt("TINYCLAW_SUMMARIZE_MESSAGE_THRESHOLD", &c.Agents.Defaults.Compaction.MessageThreshold)
	envInt("TINYCLAW_RECENT_MESSAGES_TO_KEEP", &c.Agents.Defaults.Compaction.KeepLastMessages)
}
