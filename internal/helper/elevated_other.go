//go:build !windows

package helper

import (
	"context"
	"fmt"
)

// Delete is unavailable without the Windows command shell.
func (e *ElevatedRunner) Delete(ctx context.Context, path string, isDir bool) error {
	return fmt.Errorf("%w: elevated command shell", ErrUnavailable)
}
