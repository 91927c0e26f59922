//go:build !windows

package fsops

// DeleteOnClose has no equivalent here; unlink already ignores open handles.
func DeleteOnClose(path string, isDir bool) error { return ErrUnsupported }

// MarkForDeletion has no equivalent here.
func MarkForDeletion(path string) error { return ErrUnsupported }

// DeleteOnReboot has no equivalent here.
func DeleteOnReboot(path string) error { return ErrUnsupported }

// PendingRebootDeletes always reports nothing pending.
func PendingRebootDeletes() ([]string, error) { return nil, nil }
