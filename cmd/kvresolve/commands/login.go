package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/config"
	kverrors "github.com/microsoftarchive/keyvault-configuration-resolver/internal/errors"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/keychain"
)

type credentialStore interface {
	Set(appID, secret string) error
	Delete(appID string) error
}

// NewLoginCommand creates the login command.
func NewLoginCommand(cfg *config.Config) *cobra.Command {
	return newLoginCommand(cfg, keychain.New())
}

func newLoginCommand(cfg *config.Config, store credentialStore) *cobra.Command {
	var (
		clientID string
		remove   bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the application secret in the OS keychain",
		Long: `Login keeps the Azure application secret in the OS keychain so it does not
have to be written to kvresolve.yaml or exported in the environment.

The secret is read from standard input, or prompted for without echo when
standard input is a terminal. Afterwards set client_secret_keyring: true in
the azure section of kvresolve.yaml.

Examples:
  kvresolve login --client-id 00000000-0000-0000-0000-000000000000
  printf '%s' "$SECRET" | kvresolve login
  kvresolve login --delete`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if clientID == "" {
				clientID = cfg.Definition.Azure.ClientID
			}
			if clientID == "" {
				return kverrors.UserError{
					Message:    "No application id to log in with",
					Suggestion: "Pass --client-id or set azure.client_id in kvresolve.yaml",
				}
			}

			if remove {
				if err := store.Delete(clientID); err != nil {
					return fmt.Errorf("failed to remove the secret for %s: %w", clientID, err)
				}
				cfg.Logger.Info("Removed the application secret for %s", clientID)
				return nil
			}

			secret, err := readSecret(cmd, cfg.NonInteractive)
			if err != nil {
				return err
			}

			if err := store.Set(clientID, secret); err != nil {
				return kverrors.UserError{
					Message:    "Failed to store the application secret",
					Details:    err.Error(),
					Suggestion: "Check that the OS keychain is available and unlocked",
					Err:        err,
				}
			}

			cfg.Logger.Info("Stored the application secret for %s in the keychain", clientID)
			if !cfg.Definition.Azure.ClientSecretKeyring {
				fmt.Fprintln(cmd.ErrOrStderr(), "Set 'client_secret_keyring: true' under azure: in kvresolve.yaml to use it.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "Application id (default: azure.client_id)")
	cmd.Flags().BoolVar(&remove, "delete", false, "Remove the stored secret instead")

	return cmd
}

// readSecret prompts on a terminal and otherwise reads the first line of
// standard input.
func readSecret(cmd *cobra.Command, nonInteractive bool) (string, error) {
	in := cmd.InOrStdin()

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if nonInteractive {
			return "", kverrors.UserError{
				Message:    "Cannot prompt for the secret in non-interactive mode",
				Suggestion: "Pipe the secret on standard input",
			}
		}
		fmt.Fprint(cmd.ErrOrStderr(), "Application secret: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}
		return checkSecret(string(b))
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return checkSecret(line)
}

func checkSecret(s string) (string, error) {
	s = strings.TrimRight(s, "\r\n")
	if s == "" {
		return "", kverrors.UserError{
			Message:    "The application secret is empty",
			Suggestion: "Provide the secret on standard input",
		}
	}
	return s, nil
}
