package cmd

import (
	"fmt"
	"os"

	"github.com/CoachCoe/polkadot-sso/config"
	"github.com/CoachCoe/polkadot-sso/log"
	"github.com/spf13/cobra"
)

const appName = "ssso"

var (
	cfgFile   string
	cfg       *config.ServerConfig
	appLogger log.Logger
)

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         "Polkadot single sign-on server",
	Long:          `Issues sessions and tokens to registered applications after a wallet signature, Telegram login or OpenID Connect login.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadConfig is the PersistentPreRunE of commands that need configuration.
func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error

	cfg, err = config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	appLogger = log.Setup(cfg.LogLevel, cfg.LogPretty)
	appLogger.Debug(cmd.Context(), "Configuration loaded", log.Fields{
		"storage":   cfg.StorageDriver,
		"http_port": cfg.HTTPPort,
		"issuer":    cfg.Issuer,
	})

	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default searches /etc/polkadot-sso, $HOME/.polkadot-sso and . for config.yaml)")
}
