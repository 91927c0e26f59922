package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/purewipe/internal/logging"
	"github.com/lakshaymaurya-felt/purewipe/internal/ui"
)

var unlockKill bool

var unlockCmd = &cobra.Command{
	Use:   "unlock <path...>",
	Short: "Release the locks on a file without deleting it",
	Long: `Close foreign handles on each path. With --kill, the holding processes
are terminated first; critical system processes are never terminated.
When no handle can be closed the file is marked for deletion once its
last handle closes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		out := cmd.OutOrStdout()
		ctx := cmd.Context()
		det := e.detector(logging.Reporter(e.log))

		failed := 0
		for _, path := range args {
			if unlockKill {
				killed, err := det.KillHolders(ctx, path)
				if err != nil {
					fmt.Fprintf(out, "  %s %s: %v\n", ui.IconError, path, err)
					failed++
					continue
				}
				if killed {
					fmt.Fprintf(out, "  %s %s: holders terminated\n", ui.IconSuccess, path)
					continue
				}
			}
			released, err := det.UnlockHandle(ctx, path)
			switch {
			case err != nil:
				fmt.Fprintf(out, "  %s %s: %v\n", ui.IconError, path, err)
				failed++
			case released:
				fmt.Fprintf(out, "  %s %s: released\n", ui.IconSuccess, path)
			default:
				fmt.Fprintf(out, "  %s %s: nothing could be released\n", ui.IconWarning, path)
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d path(s) could not be unlocked", failed)
		}
		return nil
	},
}

func init() {
	unlockCmd.Flags().BoolVar(&unlockKill, "kill", false, "Terminate the holding processes first")
}
