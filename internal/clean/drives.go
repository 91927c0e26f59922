package clean

import (
	"os"
	"path/filepath"
	"strings"
)

// ─── Secondary Drives ────────────────────────────────────────────────────────

// commonTempDirs are directory names used for temporary files at the root
// of data drives. The per-drive $RECYCLE.BIN is left to EmptyRecycleBin.
var commonTempDirs = []string{"Temp", "tmp"}

// commonJunkPatterns match throwaway files at a drive root.
var commonJunkPatterns = []string{
	"*.tmp",
	"*.temp",
	"~$*",
	"Thumbs.db",
}

// nonSystemDrives returns the roots of all mounted drives other than the
// system drive, e.g. "D:\".
func nonSystemDrives() []string {
	sysDrive := strings.ToUpper(os.Getenv("SYSTEMDRIVE"))
	if sysDrive == "" {
		sysDrive = "C:"
	}

	var roots []string
	for c := 'A'; c <= 'Z'; c++ {
		drive := string(c) + ":"
		if strings.EqualFold(drive, sysDrive) {
			continue
		}
		root := drive + `\`
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}
		roots = append(roots, root)
	}
	return roots
}

// DriveTemps returns cleanup targets on every non-system drive.
func DriveTemps() []Target {
	return driveTargets(nonSystemDrives())
}

// driveTargets finds temp directories, per-user temp folders and root-level
// junk files under each root. Directories are cleaned with the root kept.
func driveTargets(roots []string) []Target {
	var targets []Target
	for _, root := range roots {
		label := driveLabel(root)

		for _, name := range commonTempDirs {
			dir := filepath.Join(root, name)
			if isDir(dir) {
				targets = append(targets, Target{Path: dir, Description: label + " temp files", KeepRoot: true})
			}
		}

		users, _ := filepath.Glob(filepath.Join(root, "Users", "*", "AppData", "Local", "Temp"))
		for _, dir := range users {
			if isDir(dir) {
				targets = append(targets, Target{Path: dir, Description: label + " user temp", KeepRoot: true})
			}
		}

		for _, pattern := range commonJunkPatterns {
			matches, err := filepath.Glob(filepath.Join(root, pattern))
			if err != nil {
				continue
			}
			for _, m := range matches {
				info, err := os.Lstat(m)
				if err != nil || !info.Mode().IsRegular() {
					continue
				}
				targets = append(targets, Target{Path: m, Description: label + " junk files"})
			}
		}
	}
	return Dedupe(targets)
}

func driveLabel(root string) string {
	if vol := filepath.VolumeName(root); vol != "" {
		return vol
	}
	return filepath.Base(root)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
