package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "purewipe %s (%s) built %s, %s %s/%s\n",
			appVersion, appCommit, appDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
