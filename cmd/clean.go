package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/juju/clock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/purewipe/internal/clean"
	"github.com/lakshaymaurya-felt/purewipe/internal/core"
	"github.com/lakshaymaurya-felt/purewipe/internal/events"
	"github.com/lakshaymaurya-felt/purewipe/internal/fsops"
	"github.com/lakshaymaurya-felt/purewipe/internal/helper"
	"github.com/lakshaymaurya-felt/purewipe/internal/history"
	"github.com/lakshaymaurya-felt/purewipe/internal/ladder"
	"github.com/lakshaymaurya-felt/purewipe/internal/metrics"
	"github.com/lakshaymaurya-felt/purewipe/internal/progress"
	"github.com/lakshaymaurya-felt/purewipe/internal/scheduler"
	"github.com/lakshaymaurya-felt/purewipe/internal/ui"
	"github.com/lakshaymaurya-felt/purewipe/internal/walker"
)

var (
	cleanForce      bool
	cleanKeepRoot   bool
	cleanPresets    []string
	cleanDrives     bool
	cleanRecycleBin bool
	cleanHistory    bool
	cleanTextfile   string
	cleanSaveLog    string
	cleanRestore    bool
)

// recentLogLines is how much of the session log is echoed after a run
// with failures.
const recentLogLines = 10

var cleanCmd = &cobra.Command{
	Use:   "clean [path...]",
	Short: "Delete files, folders and cleanup presets",
	Long: `Delete the given files and directories in order, one at a time.

Without --force each object gets a single plain delete. With --force,
processes holding a target are terminated (critical system processes are
never touched), open handles are closed, ownership is taken, and stronger
deletion methods are tried in turn until the object is gone or scheduled
for deletion at the next reboot.

Presets clean well-known cache and temp folders and keep the folders
themselves. Available presets: ` + strings.Join(clean.PresetNames(), ", ") + `.`,
	Example: `  purewipe clean --force C:\Users\me\Downloads\stuck.iso
  purewipe clean --preset user-temp --preset chrome-cache
  purewipe clean --dry-run D:\old-build`,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be deleted without deleting")
	cleanCmd.Flags().BoolVarP(&cleanForce, "force", "f", false, "Break locks, take ownership and escalate until deleted")
	cleanCmd.Flags().BoolVar(&cleanKeepRoot, "keep-root", false, "Delete the contents of directory arguments but keep the directories")
	cleanCmd.Flags().StringSliceVarP(&cleanPresets, "preset", "p", nil, "Clean a named preset (repeatable)")
	cleanCmd.Flags().BoolVar(&cleanDrives, "drives", false, "Also clean temp folders and junk files on non-system drives")
	cleanCmd.Flags().BoolVar(&cleanRecycleBin, "recycle-bin", false, "Empty the recycle bin first")
	cleanCmd.Flags().BoolVar(&cleanHistory, "history", false, "Record the session in the history database")
	cleanCmd.Flags().StringVar(&cleanTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file after the run")
	cleanCmd.Flags().StringVar(&cleanSaveLog, "save-log", "", "Write the session log to this file")
	cleanCmd.Flags().BoolVar(&cleanRestore, "restore-point", false, "Create a system restore point before deleting")

	_ = cleanCmd.RegisterFlagCompletionFunc("preset", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return clean.PresetNames(), cobra.ShellCompDirectiveNoFileComp
	})
}

func runClean(cmd *cobra.Command, args []string) error {
	e, err := loadEngine(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	out := cmd.OutOrStdout()

	force := e.cfg.Force
	if cmd.Flags().Changed("force") {
		force = cleanForce
	}
	mode := ladder.ModeNormal
	if force {
		mode = ladder.ModeForce
	}

	targets, err := collectTargets(args)
	if err != nil {
		return err
	}
	if len(targets) == 0 && !cleanRecycleBin {
		return errors.New("nothing to clean: pass one or more paths, --preset, --drives or --recycle-bin")
	}

	if dryRun {
		return printPlans(out, e, targets, mode)
	}

	printBanner(out, force, e.cfg.Unrestricted)
	elevated := core.IsElevated()
	if force && !elevated {
		printWarning(out, "Not running as administrator: ownership changes and elevated deletes will likely fail")
	}
	if !elevated {
		for _, t := range targets {
			if t.RequiresAdmin {
				printWarning(out, "Some presets need administrator rights; their protected entries will be reported as failures")
				break
			}
		}
	}
	if force {
		for _, w := range e.ensureTools() {
			printWarning(out, w)
		}
	}

	if cleanRestore {
		createRestorePoint(cmd.Context(), out, e)
	}
	if cleanRecycleBin {
		emptyRecycleBin(out, e)
	}
	if len(targets) == 0 {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	summary, w, err := runSession(ctx, out, e, targets, mode, force)
	if err != nil {
		return err
	}

	progress.Report(out, summary)

	if cleanSaveLog != "" {
		if err := os.WriteFile(cleanSaveLog, []byte(strings.Join(w.Logs(), "\n")+"\n"), 0o644); err != nil {
			printWarning(out, fmt.Sprintf("Could not save log: %v", err))
		}
	}
	if summary.Failed > 0 {
		if !debug {
			printRecentLog(out, w.Logs())
		}
		return fmt.Errorf("%d object(s) could not be removed", summary.Failed)
	}
	return nil
}

// collectTargets gathers explicit paths, presets and drive scans in that
// order, dropping duplicates.
func collectTargets(args []string) ([]clean.Target, error) {
	targets, err := clean.FromArgs(args)
	if err != nil {
		return nil, err
	}
	if cleanKeepRoot {
		for i := range targets {
			targets[i].KeepRoot = true
		}
	}

	presets, err := clean.FromPresets(cleanPresets)
	if err != nil {
		return nil, err
	}
	targets = append(targets, presets...)

	if cleanDrives {
		targets = append(targets, clean.DriveTemps()...)
	}
	return clean.Dedupe(targets), nil
}

// runSession wires the engine into a worker, runs it to completion and
// returns the final summary.
func runSession(ctx context.Context, out io.Writer, e *engine, targets []clean.Target, mode ladder.Mode, force bool) (events.Summary, *scheduler.Worker, error) {
	clk := clock.WallClock
	sink := events.NewChanSink(64)
	defer sink.Close()

	journal := scheduler.NewJournal(sink, e.log, clk)
	rec := metrics.New()
	del := e.newLadder(journal, rec)

	wcfg := scheduler.Config{
		Sink:              sink,
		Journal:           journal,
		Tree:              walker.New(del, e.guard, journal),
		Files:             del,
		Clock:             clk,
		Logger:            e.log,
		HeartbeatInterval: e.cfg.Heartbeat.Interval,
		WatchdogTimeout:   e.cfg.Heartbeat.Watchdog,
		Metrics:           rec,
	}

	if cleanHistory || e.cfg.History.Enabled {
		store, session, err := beginHistory(e, len(targets), force)
		if err != nil {
			printWarning(out, fmt.Sprintf("History disabled for this run: %v", err))
		} else {
			defer store.Close()
			wcfg.History = session
			fmt.Fprintln(out, ui.MutedStyle().Render("  Session "+session.ID()))
		}
	}

	w := scheduler.New(wcfg)
	if err := w.Submit(clean.Tasks(targets, mode)...); err != nil {
		return events.Summary{}, nil, err
	}
	if err := w.Start(ctx); err != nil {
		return events.Summary{}, nil, err
	}

	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		p := tea.NewProgram(progress.New(sink.Events(), w.Cancel), tea.WithOutput(out))
		if _, err := p.Run(); err != nil {
			e.log.Error().Err(err).Msg("progress view failed")
			w.Cancel()
			go drain(sink.Events())
		}
	} else {
		progress.Follow(out, sink.Events(), debug)
	}
	summary := w.Wait()

	textfile := cleanTextfile
	if textfile == "" {
		textfile = e.cfg.Metrics.Textfile
	}
	if textfile != "" {
		if err := rec.WriteTextfile(textfile); err != nil {
			printWarning(out, fmt.Sprintf("Could not write metrics: %v", err))
		}
	}
	return summary, w, nil
}

func beginHistory(e *engine, targets int, force bool) (*history.Store, *history.Session, error) {
	store, err := history.Open(e.cfg.History.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	host, _ := os.Hostname()
	session, err := store.BeginSession(history.SessionInfo{
		Force:        force,
		Unrestricted: e.cfg.Unrestricted,
		Elevated:     core.IsElevated(),
		Host:         host,
		Targets:      targets,
	}, clock.WallClock.Now())
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, session, nil
}

func emptyRecycleBin(out io.Writer, e *engine) {
	size, items, err := clean.RecycleBinSize()
	if errors.Is(err, fsops.ErrUnsupported) {
		printWarning(out, "The recycle bin is only managed on Windows")
		return
	}
	if err == nil && items == 0 {
		fmt.Fprintf(out, "  %s Recycle bin is already empty\n", ui.IconSuccess)
		return
	}
	if err := clean.EmptyRecycleBin(); err != nil {
		e.log.Warn().Err(err).Msg("empty recycle bin")
		printWarning(out, fmt.Sprintf("Could not empty the recycle bin: %v", err))
		return
	}
	fmt.Fprintf(out, "  %s Emptied recycle bin (%d item(s), %s)\n", ui.IconSuccess, items, core.FormatSize(size))
}

// createRestorePoint never stops the run; a failure is only reported.
func createRestorePoint(ctx context.Context, out io.Writer, e *engine) {
	rp := helper.NewRestorePoint(e.run, e.cfg.Timeouts.RestorePoint)
	err := rp.Create(ctx, "purewipe clean "+time.Now().Format("2006-01-02 15:04"))
	switch {
	case errors.Is(err, helper.ErrUnavailable):
		printWarning(out, "System restore points are only available on Windows")
	case err != nil:
		e.log.Warn().Err(err).Msg("restore point")
		printWarning(out, fmt.Sprintf("Could not create a restore point: %v", err))
	default:
		fmt.Fprintf(out, "  %s Created a system restore point\n", ui.IconSuccess)
	}
}

func drain(ch <-chan events.Event) {
	for range ch {
	}
}

// ─── Output helpers ──────────────────────────────────────────────────────────

func printBanner(w io.Writer, force, unrestricted bool) {
	mode := "normal"
	if force {
		mode = "force"
	}
	line := fmt.Sprintf("purewipe %s  %s  mode: %s", appVersion, core.SystemVersionString(), mode)
	if unrestricted {
		line += "  " + ui.TagWarningStyle().Render("UNRESTRICTED")
	}
	fmt.Fprintln(w, ui.TitleStyle().Render(line))
}

func printWarning(w io.Writer, msg string) {
	fmt.Fprintln(w, ui.WarningStyle().Render("  "+ui.IconWarning+" "+msg))
}

func printRecentLog(w io.Writer, lines []string) {
	if len(lines) > recentLogLines {
		lines = lines[len(lines)-recentLogLines:]
	}
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.MutedStyle().Render("  Recent log:"))
	for _, l := range lines {
		fmt.Fprintln(w, ui.MutedStyle().Render("    "+l))
	}
}
