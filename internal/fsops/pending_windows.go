package fsops

import (
	"golang.org/x/sys/windows/registry"
)

const sessionManagerKey = `SYSTEM\CurrentControlSet\Control\Session Manager`

// PendingRebootDeletes lists the objects the session manager will delete at
// the next boot. PendingFileRenameOperations holds (source, destination)
// pairs; an empty destination means delete.
func PendingRebootDeletes() ([]string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, sessionManagerKey, registry.QUERY_VALUE)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	var out []string
	for _, name := range []string{"PendingFileRenameOperations", "PendingFileRenameOperations2"} {
		vals := readStringsValue(key, name)
		out = append(out, deletesFromPairs(vals)...)
	}
	return out, nil
}

// readStringsValue safely reads a REG_MULTI_SZ value.
// Returns nil on any error, including a missing value.
func readStringsValue(key registry.Key, name string) []string {
	vals, _, err := key.GetStringsValue(name)
	if err != nil {
		return nil
	}
	return vals
}
