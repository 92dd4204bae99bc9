// Package cmd implements the tinyclaw CLI.
package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/tinyclaw/internal/config"
)

var (
	configPath string
	verbose    bool

	baseCtx = context.Background()
)

// rootCtx is the lifetime context for background work started outside a
// command's own context (subagent runs).
func rootCtx() context.Context { return baseCtx }

var rootCmd = &cobra.Command{
	Use:   "tinyclaw",
	Short: "TinyClaw is a long-running personal AI agent",
	Long: `TinyClaw runs a personal AI agent: an LLM wired to filesystem, shell,
web, scheduling, and memory tools, with persistent sessions and a message
bus connecting chat channels to the agent loop.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to config file (JSON5)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tinyclaw.json5"
	}
	return home + "/.tinyclaw/config.json5"
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
