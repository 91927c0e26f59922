package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/purewipe/internal/clean"
	"github.com/lakshaymaurya-felt/purewipe/internal/core"
	"github.com/lakshaymaurya-felt/purewipe/internal/ladder"
	"github.com/lakshaymaurya-felt/purewipe/internal/logging"
	"github.com/lakshaymaurya-felt/purewipe/internal/ui"
	"github.com/lakshaymaurya-felt/purewipe/internal/walker"
)

var analyzeKeepRoot bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <path...>",
	Short: "Show what a clean would delete",
	Long: `Print the tree a clean would walk for each path, with sizes.
Protected entries are marked as skipped and links are never followed.
Equivalent to clean --dry-run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		targets, err := clean.FromArgs(args)
		if err != nil {
			return err
		}
		for i := range targets {
			targets[i].KeepRoot = analyzeKeepRoot
		}
		return printPlans(cmd.OutOrStdout(), e, targets, ladder.ModeNormal)
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeKeepRoot, "keep-root", false, "Plan as if directory arguments were kept")
}

// printPlans prints a dry-run tree for every target.
func printPlans(out io.Writer, e *engine, targets []clean.Target, mode ladder.Mode) error {
	w := walker.New(nil, e.guard, logging.Reporter(e.log))

	fmt.Fprintln(out, ui.TitleStyle().Render(fmt.Sprintf("Dry run: %d target(s), %s mode", len(targets), mode)))
	var total int64
	for _, t := range targets {
		fmt.Fprintln(out)
		plan, err := w.Plan(t.Path, t.KeepRoot)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			fmt.Fprintf(out, "  %s %s (already absent)\n", ui.IconSuccess, t.Path)
			continue
		case err != nil:
			fmt.Fprintf(out, "  %s %s: %v\n", ui.IconError, t.Path, err)
			continue
		}
		if !plan.IsDir {
			if err := e.guard.Check(plan.Path); err != nil {
				plan.Skipped = true
			}
		}
		if t.Description != "" {
			fmt.Fprintln(out, ui.MutedStyle().Render("  "+t.Description))
		}
		walker.PrintPlan(out, plan)
		if !plan.Skipped {
			total += plan.Size
		}
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Nothing was deleted. Up to %s would be freed.\n", core.FormatSize(total))
	return nil
}
