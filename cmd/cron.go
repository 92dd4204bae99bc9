package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/tinyclaw/internal/scheduler"
)

var (
	cronName    string
	cronEvery   int64
	cronAt      string
	cronExpr    string
	cronChannel string
	cronChatID  string
	cronDeliver bool
)

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Manage scheduled jobs",
}

var cronListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		sched, err := openScheduler()
		if err != nil {
			return err
		}
		jobs := sched.List()
		if len(jobs) == 0 {
			fmt.Println("no scheduled jobs")
			return nil
		}
		for _, j := range jobs {
			status := "on"
			if !j.Enabled {
				status = "off"
			}
			next := "-"
			if j.State.NextRunMs > 0 {
				next = time.UnixMilli(j.State.NextRunMs).Format(time.RFC3339)
			}
			fmt.Printf("%s  [%s]  %-24s next=%s runs=%d\n", j.ID, status, j.Name, next, j.State.RunCount)
			if j.State.LastError != "" {
				fmt.Printf("          last error: %s\n", j.State.LastError)
			}
		}
		return nil
	},
}

var cronAddCmd = &cobra.Command{
	Use:   "add <message>",
	Short: "Add a scheduled job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sched, err := openScheduler()
		if err != nil {
			return err
		}

		var s scheduler.Schedule
		var oneShot bool
		switch {
		case cronEvery > 0:
			s = scheduler.Schedule{Kind: "interval", EverySeconds: cronEvery}
		case cronAt != "":
			at, err := time.Parse(time.RFC3339, cronAt)
			if err != nil {
				return fmt.Errorf("--at must be RFC 3339: %w", err)
			}
			s = scheduler.Schedule{Kind: "at", AtMs: at.UnixMilli()}
			oneShot = true
		case cronExpr != "":
			s = scheduler.Schedule{Kind: "cron", Expr: cronExpr}
		default:
			return fmt.Errorf("one of --every, --at, or --cron is required")
		}

		name := cronName
		if name == "" {
			name = args[0]
		}
		job, err := sched.Add(name, s, scheduler.Payload{
			Channel: cronChannel,
			ChatID:  cronChatID,
			Message: args[0],
			Deliver: cronDeliver,
		}, oneShot)
		if err != nil {
			return err
		}
		fmt.Printf("added job %s, next run %s\n", job.ID, time.UnixMilli(job.State.NextRunMs).Format(time.RFC3339))
		return nil
	},
}

var cronRemoveCmd = &cobra.Command{
	Use:   "remove <job-id>",
	Short: "Remove a scheduled job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sched, err := openScheduler()
		if err != nil {
			return err
		}
		ok, err := sched.Remove(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no job with id %s", args[0])
		}
		fmt.Println("removed", args[0])
		return nil
	},
}

func openScheduler() (*scheduler.Scheduler, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return scheduler.NewScheduler(cfg.CronPath())
}

func init() {
	cronAddCmd.Flags().StringVar(&cronName, "name", "", "job name")
	cronAddCmd.Flags().Int64Var(&cronEvery, "every", 0, "recurring interval in seconds")
	cronAddCmd.Flags().StringVar(&cronAt, "at", "", "one-shot firing time (RFC 3339)")
	cronAddCmd.Flags().StringVar(&cronExpr, "cron", "", "5-field cron expression")
	cronAddCmd.Flags().StringVar(&cronChannel, "channel", "", "channel for the agent's response")
	cronAddCmd.Flags().StringVar(&cronChatID, "chat", "", "chat for the agent's response")
	cronAddCmd.Flags().BoolVar(&cronDeliver, "deliver", false, "deliver the agent's response to the channel")

	cronCmd.AddCommand(cronListCmd, cronAddCmd, cronRemoveCmd)
	rootCmd.AddCommand(cronCmd)
}
