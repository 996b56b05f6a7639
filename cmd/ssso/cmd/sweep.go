package cmd

import (
	"fmt"

	"github.com/CoachCoe/polkadot-sso/internal/app"
	"github.com/CoachCoe/polkadot-sso/services"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:               "sweep",
	Short:             "Delete expired challenges and codes and expire stale sessions once",
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := app.OpenStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		challenges := services.NewChallengeService(store, nil, nil, services.ChallengeConfig{}, nil)

		res, err := services.NewSweeper(challenges, store, cfg.SweepInterval, nil).SweepOnce(cmd.Context())

		fmt.Fprintf(cmd.OutOrStdout(), "challenges: %d\nauthorization codes: %d\nsessions: %d\n",
			res.Challenges, res.AuthCodes, res.Sessions)

		return err
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
