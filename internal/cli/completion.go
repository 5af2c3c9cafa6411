package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// newCompletionCmd creates the shell completion script generator.
func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for pcbforge.

To load completions:

Bash:
  $ source <(pcbforge completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ pcbforge completion bash > /etc/bash_completion.d/pcbforge
  # macOS:
  $ pcbforge completion bash > $(brew --prefix)/etc/bash_completion.d/pcbforge

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ pcbforge completion zsh > "${fpath[1]}/_pcbforge"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ pcbforge completion fish | source

  # To load completions for each session, execute once:
  $ pcbforge completion fish > ~/.config/fish/completions/pcbforge.fish

PowerShell:
  PS> pcbforge completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> pcbforge completion powershell > pcbforge.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}

	return cmd
}
