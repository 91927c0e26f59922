package clean

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// ─── Shell32 ─────────────────────────────────────────────────────────────────

var (
	modShell32          = windows.NewLazySystemDLL("shell32.dll")
	procEmptyRecycleBin = modShell32.NewProc("SHEmptyRecycleBinW")
	procQueryRecycleBin = modShell32.NewProc("SHQueryRecycleBinW")
)

const (
	sherbNoConfirmation = 0x00000001
	sherbNoProgressUI   = 0x00000002
	sherbNoSound        = 0x00000004

	hresultUnexpected = 0x8000FFFF
)

// shQueryRBInfo mirrors SHQUERYRBINFO. Natural alignment pads cbSize to
// match the C layout on 32 and 64 bit.
type shQueryRBInfo struct {
	cbSize      uint32
	i64Size     int64
	i64NumItems int64
}

// RecycleBinSize returns the bytes and item count held by the recycle bin
// across all drives.
func RecycleBinSize() (int64, int64, error) {
	if err := procQueryRecycleBin.Find(); err != nil {
		return 0, 0, err
	}
	var info shQueryRBInfo
	info.cbSize = uint32(unsafe.Sizeof(info))

	ret, _, _ := procQueryRecycleBin.Call(0, uintptr(unsafe.Pointer(&info)))
	if ret != 0 {
		return 0, 0, fmt.Errorf("SHQueryRecycleBinW failed: HRESULT 0x%08x", uint32(ret))
	}
	return info.i64Size, info.i64NumItems, nil
}

// EmptyRecycleBin empties the recycle bin on all drives without prompting.
func EmptyRecycleBin() error {
	if err := procEmptyRecycleBin.Find(); err != nil {
		return err
	}
	flags := uintptr(sherbNoConfirmation | sherbNoProgressUI | sherbNoSound)
	ret, _, _ := procEmptyRecycleBin.Call(0, 0, flags)

	// E_UNEXPECTED means the bin was already empty.
	if hr := uint32(ret); hr != 0 && hr != hresultUnexpected {
		return fmt.Errorf("SHEmptyRecycleBinW failed: HRESULT 0x%08x", hr)
	}
	return nil
}
