package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/purewipe/internal/ui"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Install the Sysinternals helper tools",
	Long: `Extract handle.exe and PsExec from Handle.zip and PSTools.zip into the
tools directory. Place the archives in the tools directory or next to the
purewipe executable first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		out := cmd.OutOrStdout()

		written, err := e.tools.Install()
		for _, w := range written {
			fmt.Fprintf(out, "  %s installed %s\n", ui.IconSuccess, w)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s handle.exe: %s\n", ui.IconBullet, toolLabel(e.tools.Handle()))
		fmt.Fprintf(out, "  %s PsExec:     %s\n", ui.IconBullet, toolLabel(e.tools.PsExec()))
		return nil
	},
}
