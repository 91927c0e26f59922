//go:build !windows

package lock

// executablePaths has no extra source outside Windows.
func executablePaths() (map[int32]string, error) { return nil, nil }
