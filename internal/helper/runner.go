// Package helper locates and drives the optional external tools the
// deletion ladder relies on: the Sysinternals handle utility, PsExec and the
// system command shell.
package helper

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrUnavailable means a helper tool is not installed. Callers skip the
// step that needed it.
var ErrUnavailable = errors.New("helper tool unavailable")

// maxOutput bounds how much tool output is carried in an error message.
const maxOutput = 200

// Runner executes an external command with a hard timeout and returns its
// combined output.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	hideWindow(cmd)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, describeExitError(ctx, name, timeout, err, output)
	}
	return output, nil
}

// describeExitError wraps an exec error with the tool name, its exit code
// and the start of its output.
func describeExitError(ctx context.Context, name string, timeout time.Duration, err error, output []byte) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%s timed out after %s: %w", name, timeout, context.DeadlineExceeded)
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("%s: %w", name, context.Canceled)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if out := truncateOutput(output, maxOutput); out != "" {
			return fmt.Errorf("%s failed (exit code %d): %s: %w", name, exitErr.ExitCode(), out, err)
		}
		return fmt.Errorf("%s failed (exit code %d): %w", name, exitErr.ExitCode(), err)
	}

	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnavailable, name)
	}
	return fmt.Errorf("%s: %w", name, err)
}

// truncateOutput trims output to max bytes at a valid UTF-8 boundary.
func truncateOutput(output []byte, max int) string {
	s := strings.TrimSpace(string(output))
	if len(s) <= max {
		return s
	}
	s = s[:max]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s + "..."
}
