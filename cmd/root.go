package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	debug        bool
	dryRun       bool
	configPath   string
	unrestricted bool
	logFile      string

	// Version info populated from main
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets build-time version information.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
	rootCmd.Version = version
}

var rootCmd = &cobra.Command{
	Use:   "purewipe",
	Short: "Delete files and folders that refuse to go away",
	Long: `purewipe - forced deletion for locked and protected files.

Removes files and directory trees even when other processes hold them
open or their permissions deny access: holders are terminated or their
handles closed, ownership is taken, and when nothing else works the
object is scheduled for deletion at the next reboot. Critical operating
system files are refused unless --unrestricted is given.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Show detailed operation logs")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is the per-user config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&unrestricted, "unrestricted", false, "Allow deleting critical system files and protected folders")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write JSON logs to this file (rotated)")

	// Register all subcommands
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(locksCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(versionCmd)
}
