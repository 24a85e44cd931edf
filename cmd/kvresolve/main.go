package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/microsoftarchive/keyvault-configuration-resolver/cmd/kvresolve/commands"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/config"
	kverrors "github.com/microsoftarchive/keyvault-configuration-resolver/internal/errors"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", kverrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile     string
		noColor        bool
		debug          bool
		nonInteractive bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "kvresolve",
		Short: "Resolve Key Vault secret references in configuration files",
		Long: `kvresolve replaces keyvault:// references in JSON and YAML configuration
with the secrets (or secret tags) they point to.

  keyvault://my-vault.vault.azure.net/secrets/db-password
  keyvault://username@my-vault.vault.azure.net/secrets/db-credentials`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Required = cmd.Flags().Changed("config")
			cfg.Logger = logging.New(debug, noColor)
			cfg.NonInteractive = nonInteractive
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt for input")

	rootCmd.AddCommand(
		commands.NewResolveCommand(cfg),
		commands.NewPlanCommand(cfg),
		commands.NewLoginCommand(cfg),
		commands.NewCompletionCommand(cfg),
	)

	return rootCmd.Execute()
}
