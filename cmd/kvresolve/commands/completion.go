package commands

import (
	"github.com/spf13/cobra"

	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/config"
)

// NewCompletionCommand creates the completion command for generating shell completions.
func NewCompletionCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for kvresolve.

To load completions:

Bash:
  $ source <(kvresolve completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ kvresolve completion bash > /etc/bash_completion.d/kvresolve
  # macOS:
  $ kvresolve completion bash > $(brew --prefix)/etc/bash_completion.d/kvresolve

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  $ kvresolve completion zsh > "${fpath[1]}/_kvresolve"

Fish:
  $ kvresolve completion fish | source

PowerShell:
  PS> kvresolve completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}
