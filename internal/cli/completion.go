package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// completionCmd generates shell completion scripts for Sentinel.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for Sentinel.

To install completions:

  Bash (Linux):
    sentinel completion bash | sudo tee /etc/bash_completion.d/sentinel > /dev/null

  Bash (macOS with Homebrew):
    sentinel completion bash > $(brew --prefix)/etc/bash_completion.d/sentinel

  Zsh:
    sentinel completion zsh > "${fpath[1]}/_sentinel"
    # or
    sentinel completion zsh > ~/.zsh/completions/_sentinel

  Fish:
    sentinel completion fish > ~/.config/fish/completions/sentinel.fish

  PowerShell:
    sentinel completion powershell > sentinel.ps1
    # Then add ". sentinel.ps1" to your PowerShell profile`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		default:
			return fmt.Errorf("unsupported shell: %s", args[0])
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
