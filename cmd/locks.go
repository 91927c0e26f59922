package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/purewipe/internal/logging"
	"github.com/lakshaymaurya-felt/purewipe/internal/ui"
)

var locksCmd = &cobra.Command{
	Use:   "locks <path...>",
	Short: "List processes holding a file",
	Long:  "List the processes whose executable is the given file or which have it open.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		out := cmd.OutOrStdout()
		det := e.detector(logging.Reporter(e.log))

		for _, path := range args {
			holders, err := det.Holders(cmd.Context(), path)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, ui.TitleStyle().Render(path))
			if len(holders) == 0 {
				fmt.Fprintf(out, "  %s not locked by any visible process\n", ui.IconSuccess)
				continue
			}
			fmt.Fprintf(out, "  %-8s %-24s %-12s %s\n", "PID", "NAME", "MATCH", "EXECUTABLE")
			for _, h := range holders {
				fmt.Fprintf(out, "  %-8d %-24s %-12s %s\n", h.PID, ui.Truncate(h.Name, 24), h.MatchedBy, h.Exe)
			}
		}
		return nil
	},
}
