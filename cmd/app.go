package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/tinyclaw/internal/agent"
	"github.com/nextlevelbuilder/tinyclaw/internal/bus"
	"github.com/nextlevelbuilder/tinyclaw/internal/config"
	"github.com/nextlevelbuilder/tinyclaw/internal/memory"
	"github.com/nextlevelbuilder/tinyclaw/internal/providers"
	"github.com/nextlevelbuilder/tinyclaw/internal/sandbox"
	"github.com/nextlevelbuilder/tinyclaw/internal/scheduler"
	"github.com/nextlevelbuilder/tinyclaw/internal/sessions"
	"github.com/nextlevelbuilder/tinyclaw/internal/skills"
	"github.com/nextlevelbuilder/tinyclaw/internal/tools"
)

// app holds the wired runtime shared by serve and chat.
type app struct {
	cfg       *config.Config
	msgBus    *bus.MessageBus
	loop      *agent.Loop
	scheduler *scheduler.Scheduler
	skills    *skills.Loader
	memory    *memory.Store
	msgTool   *tools.MessageTool
}

// buildApp wires every component from config. The caller owns shutdown of
// scheduler, skills watcher, and memory store.
func buildApp(cfg *config.Config) (*app, error) {
	defaults := cfg.Agents.Defaults
	workspace := cfg.WorkspacePath()
	if err := os.MkdirAll(workspace, 0755); err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}

	apiBase, apiKey := cfg.ResolveProvider(defaults.Model)
	provider := providers.NewOpenAIProvider("openai-compatible", apiKey, apiBase)

	msgBus := bus.NewMessageBus(cfg.Bus.Capacity)
	sessMgr := sessions.NewManager(cfg.SessionsPath())
	guard := sandbox.NewGuard(workspace, defaults.RestrictToWorkspace, cfg.Tools.CommandBlacklist)

	memStore, err := memory.Open(filepath.Join(workspace, "memory"))
	if err != nil {
		// Memory is a supplement; a broken index must not block startup.
		slog.Warn("memory store unavailable", "error", err)
		memStore = nil
	}

	skillLoader := skills.NewLoader(cfg.SkillsPath())
	if err := skillLoader.Watch(); err != nil {
		slog.Debug("skills watch disabled", "error", err)
	}

	sched, err := scheduler.NewScheduler(cfg.CronPath())
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	msgTool := tools.NewMessageTool(func(channel, chatID, content string) error {
		if !msgBus.PublishOutbound(bus.OutboundMessage{Channel: channel, ChatID: chatID, Content: content}) {
			return fmt.Errorf("outbound queue full")
		}
		return nil
	})

	registry := tools.NewRegistry(time.Duration(cfg.Tools.ToolTimeoutSeconds) * time.Second)
	registry.Register(&tools.ReadFileTool{Guard: guard})
	registry.Register(&tools.WriteFileTool{Guard: guard})
	registry.Register(&tools.AppendFileTool{Guard: guard})
	registry.Register(&tools.EditFileTool{Guard: guard})
	registry.Register(&tools.ListFilesTool{Guard: guard})
	registry.Register(&tools.ExecTool{Guard: guard, Timeout: time.Duration(cfg.Tools.ExecTimeoutSeconds) * time.Second})

	webLimiter := rate.NewLimiter(rate.Limit(cfg.Tools.Web.RequestsPerSec), 1)
	registry.Register(tools.NewWebSearchTool(cfg.Tools.Web.MaxResults, webLimiter))
	registry.Register(tools.NewWebFetchTool(webLimiter))

	registry.Register(msgTool)
	registry.Register(tools.NewCronTool(sched))
	registry.Register(&tools.SkillsTool{Loader: skillLoader, Guard: guard})
	if memStore != nil {
		registry.Register(&tools.MemorySearchTool{Store: memStore})
		registry.Register(&tools.MemoryStoreTool{Store: memStore})
	}

	builder := agent.NewContextBuilder(workspace, registry, skillLoader, memStore, defaults.ContextWindow/2)
	summ := agent.NewSummarizer(provider, sessMgr, defaults.Compaction, defaults.Model, defaults.ContextWindow)

	loop := agent.NewLoop(provider, sessMgr, registry, builder, msgBus, summ, agent.Options{
		Model:         defaults.Model,
		MaxTokens:     defaults.MaxTokens,
		Temperature:   defaults.Temperature,
		MaxIterations: defaults.MaxToolIterations,
		Workers:       defaults.Workers,
	})

	registry.Register(tools.NewSpawnTool(func(key, origin, task string) {
		loop.RunSpawned(rootCtx(), key, origin, task)
	}))

	return &app{
		cfg:       cfg,
		msgBus:    msgBus,
		loop:      loop,
		scheduler: sched,
		skills:    skillLoader,
		memory:    memStore,
		msgTool:   msgTool,
	}, nil
}

// close releases background components.
func (a *app) close() {
	a.skills.Close()
	if a.memory != nil {
		a.memory.Close()
	}
}
