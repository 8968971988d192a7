package cmd

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/relaygate/relaygate/internal/config"
	"github.com/relaygate/relaygate/internal/cron"
)

// cronStorePath derives the cron job file path from the sessions storage
// directory, keeping all gateway state under one base directory.
func cronStorePath(cfg *config.Config) string {
	base := config.ExpandHome(cfg.Sessions.Storage)
	return filepath.Join(filepath.Dir(base), "cron", "jobs.json")
}

func cronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Manage recurring agent jobs",
	}
	cmd.AddCommand(cronListCmd())
	cmd.AddCommand(cronAddCmd())
	cmd.AddCommand(cronRemoveCmd())
	return cmd
}

func loadCronService() (*cron.Service, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	svc := cron.NewService(cronStorePath(cfg), nil)
	svc.SetRetryConfig(cfg.Cron.ToRetryConfig())
	return svc, nil
}

func cronListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled cron jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadCronService()
			if err != nil {
				return err
			}
			jobs := svc.ListJobs()
			if len(jobs) == 0 {
				fmt.Println("no cron jobs configured")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSCHEDULE\tAGENT\tENABLED")
			for _, j := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", j.ID, j.Name, j.Schedule, j.AgentID, j.Enabled)
			}
			return w.Flush()
		},
	}
}

func cronAddCmd() *cobra.Command {
	var agentID, channel, to, message string
	var deliver bool

	c := &cobra.Command{
		Use:   "add NAME SCHEDULE",
		Short: "Add a recurring job (standard 5-field cron expression)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadCronService()
			if err != nil {
				return err
			}
			job := &cron.Job{
				Name:     args[0],
				Schedule: args[1],
				AgentID:  agentID,
				Enabled:  true,
				Payload: cron.JobPayload{
					Message: message,
					Channel: channel,
					To:      to,
					Deliver: deliver,
				},
			}
			added, err := svc.AddJob(job)
			if err != nil {
				return err
			}
			fmt.Printf("added job %s (%s)\n", added.ID, added.Name)
			return nil
		},
	}
	c.Flags().StringVar(&agentID, "agent", "", "agent ID to run (default agent if unset)")
	c.Flags().StringVar(&message, "message", "", "message to send the agent")
	c.Flags().StringVar(&channel, "channel", "", "channel to deliver the reply on")
	c.Flags().StringVar(&to, "to", "", "chat ID to deliver the reply to")
	c.Flags().BoolVar(&deliver, "deliver", false, "deliver the agent's reply to channel/to")
	return c
}

func cronRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Remove a cron job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadCronService()
			if err != nil {
				return err
			}
			svc.RemoveJob(args[0])
			fmt.Printf("removed job %s\n", args[0])
			return nil
		},
	}
}
