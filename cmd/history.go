package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/purewipe/internal/core"
	"github.com/lakshaymaurya-felt/purewipe/internal/history"
	"github.com/lakshaymaurya-felt/purewipe/internal/ui"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Show past clean sessions",
	Long: `Without arguments, list the most recent sessions recorded with
clean --history. With a session id, list every object of that session
and how it ended.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		store, err := history.Open(e.cfg.History.DatabasePath)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 1 {
			return printOutcomes(cmd.OutOrStdout(), store, args[0])
		}
		return printSessions(cmd.OutOrStdout(), store, historyLimit)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of sessions to show")
}

func printSessions(out io.Writer, store *history.Store, limit int) error {
	sessions, err := store.RecentSessions(limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "  No sessions recorded yet. Run clean with --history to record one.")
		return nil
	}
	for _, s := range sessions {
		flags := ""
		if s.Force {
			flags += " force"
		}
		if s.Unrestricted {
			flags += " " + ui.TagWarningStyle().Render("unrestricted")
		}
		state := ui.SuccessStyle().Render("done")
		switch {
		case s.FinishedAt == nil:
			state = ui.ErrorStyle().Render("interrupted")
		case s.Canceled:
			state = ui.WarningStyle().Render("cancelled")
		case s.Failed > 0:
			state = ui.WarningStyle().Render("partial")
		}
		fmt.Fprintf(out, "  %s  %-14s %s%s\n", s.ID, humanize.Time(s.StartedAt), state, flags)
		fmt.Fprintf(out, "      %d target(s): %d removed, %d deferred, %d failed, %s freed\n",
			s.Targets, s.Removed, s.Deferred, s.Failed, core.FormatSize(s.FreedBytes))
	}
	return nil
}

func printOutcomes(out io.Writer, store *history.Store, id string) error {
	outcomes, err := store.Outcomes(id)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		return fmt.Errorf("no outcomes recorded for session %s", id)
	}
	for _, o := range outcomes {
		icon := ui.IconSuccess
		switch o.Status {
		case "deferred":
			icon = ui.IconPending
		case "failed":
			icon = ui.IconError
		}
		line := fmt.Sprintf("  %s %s", icon, o.Path)
		if o.Strategy != "" {
			line += ui.MutedStyle().Render("  via " + o.Strategy)
		}
		if o.Reason != "" {
			line += ui.MutedStyle().Render("  (" + o.Reason + ")")
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
