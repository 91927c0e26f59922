package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [powershell|bash|zsh|fish]",
	Short: "Set up shell tab completion",
	Long: `Generate a tab completion script. PowerShell is the default:

  purewipe completion | Out-String | Invoke-Expression

Add that line to your $PROFILE to load it in every session.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"powershell", "bash", "zsh", "fish"},
	RunE: func(cmd *cobra.Command, args []string) error {
		shell := "powershell"
		if len(args) == 1 {
			shell = args[0]
		}
		root, out := cmd.Root(), cmd.OutOrStdout()
		switch shell {
		case "powershell":
			return root.GenPowerShellCompletionWithDesc(out)
		case "bash":
			return root.GenBashCompletionV2(out, true)
		case "zsh":
			return root.GenZshCompletion(out)
		case "fish":
			return root.GenFishCompletion(out, true)
		default:
			return fmt.Errorf("unsupported shell %q", shell)
		}
	},
}
