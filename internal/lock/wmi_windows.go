package lock

import (
	"github.com/yusufpapurcu/wmi"
)

// win32Process is the subset of Win32_Process the detector reads.
type win32Process struct {
	ProcessId      uint32
	ExecutablePath *string
}

// executablePaths reads every process's image path in one WMI query.
// WMI runs with the provider's rights, so it returns paths gopsutil
// cannot open.
func executablePaths() (map[int32]string, error) {
	var rows []win32Process
	if err := wmi.Query("SELECT ProcessId, ExecutablePath FROM Win32_Process", &rows); err != nil {
		return nil, err
	}
	paths := make(map[int32]string, len(rows))
	for _, r := range rows {
		if r.ExecutablePath != nil && *r.ExecutablePath != "" {
			paths[int32(r.ProcessId)] = *r.ExecutablePath
		}
	}
	return paths, nil
}
