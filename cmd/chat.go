package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/tinyclaw/internal/bus"
	"github.com/nextlevelbuilder/tinyclaw/internal/channels/cli"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the agent in the terminal",
	Long: `Chat runs the agent directly without the bus worker pool. With a
message argument it answers once and exits; without one it opens an
interactive session. Replies stream to stdout as they are generated.`,
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

		ctx := cmd.Context()
		if len(args) > 0 {
			return chatOnce(ctx, a, strings.Join(args, " "))
		}
		return chatInteractive(ctx, a)
	},
}

func chatOnce(ctx context.Context, a *app, message string) error {
	_, err := a.loop.ProcessDirectStream(ctx, chatMsg(message), func(delta string) {
		fmt.Print(delta)
	})
	fmt.Println()
	return err
}

func chatInteractive(ctx context.Context, a *app) error {
	fmt.Println("TinyClaw interactive chat. Ctrl-D to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/reset" {
			if err := a.loop.Sessions().Reset("cli:" + cli.ChatID); err != nil {
				fmt.Println("reset failed:", err)
			} else {
				fmt.Println("session cleared")
			}
			continue
		}

		if _, err := a.loop.ProcessDirectStream(ctx, chatMsg(line), func(delta string) {
			fmt.Print(delta)
		}); err != nil {
			fmt.Println("⚠️ ", err)
			continue
		}
		fmt.Println()
	}
}

func chatMsg(content string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:  "cli",
		SenderID: "user",
		ChatID:   cli.ChatID,
		Content:  content,
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
