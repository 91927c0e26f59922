package helper

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RestorePoint creates a system restore point through PowerShell's
// Checkpoint-Computer before a destructive run.
type RestorePoint struct {
	run       Runner
	timeout   time.Duration
	supported bool
}

// NewRestorePoint returns a creator bounded by timeout.
func NewRestorePoint(run Runner, timeout time.Duration) *RestorePoint {
	return &RestorePoint{run: run, timeout: timeout, supported: restorePointsSupported}
}

// Create records a restore point named description.
func (r *RestorePoint) Create(ctx context.Context, description string) error {
	if !r.supported {
		return fmt.Errorf("%w: system restore", ErrUnavailable)
	}
	_, err := r.run.Run(ctx, r.timeout, "powershell.exe",
		"-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass",
		"-Command", checkpointCommand(description))
	if err != nil {
		return fmt.Errorf("create restore point: %w", err)
	}
	return nil
}

// checkpointCommand quotes description as a PowerShell single-quoted
// string, where the only escape is a doubled quote.
func checkpointCommand(description string) string {
	quoted := "'" + strings.ReplaceAll(description, "'", "''") + "'"
	return "Checkpoint-Computer -Description " + quoted + " -RestorePointType MODIFY_SETTINGS"
}
