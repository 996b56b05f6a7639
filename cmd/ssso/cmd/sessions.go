package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/CoachCoe/polkadot-sso/domain"
	"github.com/CoachCoe/polkadot-sso/internal/app"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:               "sessions",
	Short:             "List stored sessions",
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, _ []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		clientID, _ := cmd.Flags().GetString("client-id")
		activeOnly, _ := cmd.Flags().GetBool("active")

		store, err := app.OpenStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		sessions, err := store.ListSessions(cmd.Context(), domain.SessionFilter{
			Subject:    subject,
			ClientID:   clientID,
			ActiveOnly: activeOnly,
		})
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}

		if len(sessions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSUBJECT\tCLIENT\tACTIVE\tCREATED\tLAST USED")

		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n",
				s.ID, s.Subject, s.ClientID, s.Active,
				s.CreatedAt.Format(time.RFC3339), s.LastUsedAt.Format(time.RFC3339))
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)

	sessionsCmd.Flags().String("subject", "", "Only sessions of this subject, e.g. wallet:<address>")
	sessionsCmd.Flags().String("client-id", "", "Only sessions issued to this client")
	sessionsCmd.Flags().Bool("active", false, "Only active sessions")
}
