package progress

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lakshaymaurya-felt/purewipe/internal/core"
	"github.com/lakshaymaurya-felt/purewipe/internal/events"
	"github.com/lakshaymaurya-felt/purewipe/internal/ui"
)

// Follow prints events as plain lines until the completion event or until
// ch is closed, and returns the summary if one arrived. Log lines are only
// printed when verbose is set; warnings and status lines always are.
func Follow(w io.Writer, ch <-chan events.Event, verbose bool) *events.Summary {
	for e := range ch {
		switch e.Kind {
		case events.KindStatus:
			fmt.Fprintf(w, "  %s\n", e.Message)
		case events.KindLog:
			if verbose {
				fmt.Fprintf(w, "  %s\n", e.Message)
			}
		case events.KindWarning:
			fmt.Fprintf(w, "  %s %s\n", ui.IconWarning, e.Message)
		case events.KindCompleted:
			return e.Summary
		}
	}
	return nil
}

// Report prints the final summary and the failure report.
func Report(w io.Writer, s events.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  "+strings.Repeat("-", 58))
	state := "Completed"
	if s.Canceled {
		state = "Cancelled"
	}
	fmt.Fprintf(w, "  %s: %d of %d task(s) in %s\n", state, s.Processed, s.Tasks, s.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  %s %d removed  %s %d deferred to reboot  %s %d failed\n",
		ui.IconSuccess, s.Removed, ui.IconPending, s.Deferred, ui.IconError, s.Failed)
	fmt.Fprintf(w, "  Freed: %s\n", core.FormatSize(s.FreedBytes))

	if len(s.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Not removed:")
		for _, f := range s.Failures {
			fmt.Fprintf(w, "    %s %s  (%s)\n", ui.IconBullet, f.Path, f.Reason)
		}
	}
	if s.Deferred > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Restart the computer to finish removing deferred items.")
	}
	fmt.Fprintln(w, "  "+strings.Repeat("-", 58))
}
