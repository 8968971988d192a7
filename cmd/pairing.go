package cmd

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/relaygate/relaygate/internal/config"
	"github.com/relaygate/relaygate/internal/pairing"
)

// pairingStorePath derives the pairing snapshot path from the sessions
// storage directory, keeping all gateway state under one base directory.
func pairingStorePath(cfg *config.Config) string {
	base := config.ExpandHome(cfg.Sessions.Storage)
	return filepath.Join(filepath.Dir(base), "pairing", "requests.json")
}

func pairingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pairing",
		Short: "Manage channel pairing requests",
	}
	cmd.AddCommand(pairingListCmd())
	cmd.AddCommand(pairingApproveCmd())
	return cmd
}

func loadPairingService() (*pairing.Service, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return pairing.NewService(pairingStorePath(cfg)), nil
}

func pairingListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending pairing requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadPairingService()
			if err != nil {
				return err
			}
			pending := svc.Pending()
			if len(pending) == 0 {
				fmt.Println("no pending pairing requests")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tCHANNEL\tUSER\tCHAT\tEXPIRES")
			for _, r := range pending {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Code, r.Channel, r.UserID, r.ChatID, r.ExpiresAt.Format("15:04:05"))
			}
			return w.Flush()
		},
	}
}

func pairingApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve CODE",
		Short: "Approve a pending pairing code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadPairingService()
			if err != nil {
				return err
			}
			r, err := svc.Approve(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("approved %s for user %s on %s\n", r.Code, r.UserID, r.Channel)
			return nil
		},
	}
}
