package fsops

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// fileDispositionInfo mirrors FILE_DISPOSITION_INFO.
type fileDispositionInfo struct {
	DeleteFile bool
}

// fileDispositionInfoEx mirrors FILE_DISPOSITION_INFO_EX.
type fileDispositionInfoEx struct {
	Flags uint32
}

const shareAll = windows.FILE_SHARE_READ | windows.FILE_SHARE_WRITE | windows.FILE_SHARE_DELETE

// DeleteOnClose opens path with FILE_FLAG_DELETE_ON_CLOSE and full sharing
// and closes the handle at once. The object disappears once every other
// handle on it is closed.
func DeleteOnClose(path string, isDir bool) error {
	p, err := windows.UTF16PtrFromString(LongPath(path))
	if err != nil {
		return err
	}
	flags := uint32(windows.FILE_FLAG_DELETE_ON_CLOSE | windows.FILE_FLAG_OPEN_REPARSE_POINT)
	if isDir {
		flags |= windows.FILE_FLAG_BACKUP_SEMANTICS
	}
	h, err := windows.CreateFile(p, windows.DELETE, shareAll, nil, windows.OPEN_EXISTING, flags, 0)
	if err != nil {
		return fmt.Errorf("open for delete-on-close: %w", err)
	}
	return windows.CloseHandle(h)
}

// MarkForDeletion opens path with DELETE access and sets its disposition.
// POSIX semantics are tried first so the name is unlinked immediately even
// while other handles remain open; older systems fall back to the classic
// disposition.
func MarkForDeletion(path string) error {
	p, err := windows.UTF16PtrFromString(LongPath(path))
	if err != nil {
		return err
	}
	h, err := windows.CreateFile(p, windows.DELETE, shareAll, nil, windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OPEN_REPARSE_POINT, 0)
	if err != nil {
		return fmt.Errorf("open with delete access: %w", err)
	}
	defer windows.CloseHandle(h)

	ex := fileDispositionInfoEx{
		Flags: windows.FILE_DISPOSITION_DELETE |
			windows.FILE_DISPOSITION_POSIX_SEMANTICS |
			windows.FILE_DISPOSITION_IGNORE_READONLY_ATTRIBUTE,
	}
	err = windows.SetFileInformationByHandle(h, windows.FileDispositionInfoEx,
		(*byte)(unsafe.Pointer(&ex)), uint32(unsafe.Sizeof(ex)))
	if err == nil {
		return nil
	}

	classic := fileDispositionInfo{DeleteFile: true}
	if err := windows.SetFileInformationByHandle(h, windows.FileDispositionInfo,
		(*byte)(unsafe.Pointer(&classic)), uint32(unsafe.Sizeof(classic))); err != nil {
		return fmt.Errorf("set delete disposition: %w", err)
	}
	return nil
}

// DeleteOnReboot registers path for removal by the session manager at the
// next boot.
func DeleteOnReboot(path string) error {
	p, err := windows.UTF16PtrFromString(LongPath(path))
	if err != nil {
		return err
	}
	if err := windows.MoveFileEx(p, nil, windows.MOVEFILE_DELAY_UNTIL_REBOOT); err != nil {
		return fmt.Errorf("schedule delete on reboot: %w", err)
	}
	return nil
}
