package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/tinyclaw/internal/bus"
	"github.com/nextlevelbuilder/tinyclaw/internal/channels"
	"github.com/nextlevelbuilder/tinyclaw/internal/channels/cli"
	"github.com/nextlevelbuilder/tinyclaw/internal/heartbeat"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent with all channels, scheduler, and heartbeat",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		chanMgr := channels.NewManager(a.msgBus)
		if cfg.Channels.CLI.Enabled {
			chanMgr.Register(cli.New(a.msgBus))
		}
		if err := chanMgr.Start(ctx); err != nil {
			return err
		}
		defer chanMgr.Stop()

		a.scheduler.SetCallback(func(msg bus.InboundMessage) {
			a.msgBus.PublishInbound(msg)
		})
		a.scheduler.Start()
		defer a.scheduler.Stop()

		if cfg.Heartbeat.Enabled {
			hb := heartbeat.NewRunner(cfg.WorkspacePath(),
				time.Duration(cfg.Heartbeat.IntervalSeconds)*time.Second,
				func(msg bus.InboundMessage) { a.msgBus.PublishInbound(msg) })
			hb.SetBusyCheck(func() bool { return a.msgBus.InboundSize() > 0 })
			go hb.Run(ctx)
		}

		slog.Info("tinyclaw.serving",
			"model", cfg.Agents.Defaults.Model,
			"workspace", cfg.WorkspacePath(),
			"workers", cfg.Agents.Defaults.Workers)

		a.loop.Run(ctx)
		slog.Info("tinyclaw.stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
