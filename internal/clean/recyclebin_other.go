//go:build !windows

package clean

import "github.com/lakshaymaurya-felt/purewipe/internal/fsops"

func RecycleBinSize() (int64, int64, error) { return 0, 0, fsops.ErrUnsupported }

func EmptyRecycleBin() error { return fsops.ErrUnsupported }
