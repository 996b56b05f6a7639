package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/CoachCoe/polkadot-sso/internal/auth"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var hashSecretCmd = &cobra.Command{
	Use:   "hash-secret [secret]",
	Short: "Print the bcrypt hash of a client secret for the clients file",
	Long:  `Hashes the secret given as argument, or read from standard input when omitted.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cost, _ := cmd.Flags().GetInt("cost")

		var secret string
		if len(args) == 1 {
			secret = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read secret: %w", err)
			}

			secret = strings.TrimRight(line, "\r\n")
		}

		if secret == "" {
			return errors.New("secret must not be empty")
		}

		hash, err := auth.NewBcryptPasswordHasher(cost).Hash(secret)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), hash)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashSecretCmd)

	hashSecretCmd.Flags().Int("cost", bcrypt.DefaultCost, "bcrypt cost")
}
