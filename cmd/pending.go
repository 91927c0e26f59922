package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/purewipe/internal/fsops"
	"github.com/lakshaymaurya-felt/purewipe/internal/ui"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List deletions scheduled for the next reboot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		paths, err := fsops.PendingRebootDeletes()
		if err != nil {
			return fmt.Errorf("read pending operations: %w", err)
		}
		if len(paths) == 0 {
			fmt.Fprintf(out, "  %s No deletions are waiting for a reboot\n", ui.IconSuccess)
			return nil
		}
		fmt.Fprintln(out, ui.TitleStyle().Render(fmt.Sprintf("%d object(s) will be deleted at the next reboot", len(paths))))
		for _, p := range paths {
			fmt.Fprintf(out, "  %s %s\n", ui.IconPending, p)
		}
		return nil
	},
}
