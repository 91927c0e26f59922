package helper

import (
	"context"
	"fmt"
	"os"
)

// Delete removes path with the elevated script. PsExec -s runs it as
// SYSTEM, which can take ownership of objects no administrator can open.
func (e *ElevatedRunner) Delete(ctx context.Context, path string, isDir bool) error {
	script, err := RenderScript(path, isDir, defaultRetries)
	if err != nil {
		return fmt.Errorf("render script: %w", err)
	}

	f, err := os.CreateTemp("", "purewipe-*.cmd")
	if err != nil {
		return fmt.Errorf("create script: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(script); err != nil {
		f.Close()
		return fmt.Errorf("write script: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write script: %w", err)
	}

	timeout := e.timeout(isDir)
	if psexec, lookErr := e.tools.PsExec(); lookErr == nil {
		_, err = e.run.Run(ctx, timeout, psexec, "-accepteula", "-nobanner", "-s", "cmd.exe", "/c", f.Name())
	} else {
		_, err = e.run.Run(ctx, timeout, "cmd.exe", "/c", f.Name())
	}
	return err
}
