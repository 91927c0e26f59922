package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/lakshaymaurya-felt/purewipe/internal/envutil"
)

// Preset is a named group of directories whose contents can be cleaned.
// The directories themselves are kept.
type Preset struct {
	// Name is the identifier used on the command line.
	Name string

	// Paths may contain glob patterns and environment references.
	Paths []string

	Description string

	// RequiresAdmin indicates whether elevated privileges are needed.
	RequiresAdmin bool

	// Category groups related presets ("user", "system", "browser", "dev").
	Category string
}

// expand resolves environment variables in a path, supporting both
// Windows %VAR% and Unix $VAR / ${VAR} syntax.
func expand(path string) string {
	return envutil.ExpandWindowsEnv(path)
}

func localAppData() string {
	return os.Getenv("LOCALAPPDATA")
}

func appData() string {
	return os.Getenv("APPDATA")
}

// WinDir returns the Windows directory (e.g., C:\Windows).
// Falls back to C:\Windows only if %WINDIR% is not set.
func WinDir() string {
	if w := os.Getenv("WINDIR"); w != "" {
		return w
	}
	return `C:\Windows`
}

// programData returns the ProgramData directory (e.g., C:\ProgramData).
func programData() string {
	if p := os.Getenv("PROGRAMDATA"); p != "" {
		return p
	}
	return `C:\ProgramData`
}

// systemDrive returns the system drive root with backslash (e.g., C:\).
func systemDrive() string {
	if d := os.Getenv("SYSTEMDRIVE"); d != "" {
		return d + `\`
	}
	return `C:\`
}

func programFiles() string {
	if p := os.Getenv("PROGRAMFILES"); p != "" {
		return p
	}
	return `C:\Program Files`
}

func programFilesX86() string {
	if p := os.Getenv("PROGRAMFILES(X86)"); p != "" {
		return p
	}
	return `C:\Program Files (x86)`
}

// ─── Presets ─────────────────────────────────────────────────────────────────

// GetPresets returns all cleanup presets with environment references expanded.
func GetPresets() []Preset {
	local := localAppData()
	roaming := appData()

	return []Preset{
		{
			Name:        "user-temp",
			Paths:       []string{expand("$TEMP"), filepath.Join(local, "Temp")},
			Description: "User temporary files",
			Category:    "user",
		},
		{
			Name:          "system-temp",
			Paths:         []string{filepath.Join(WinDir(), "Temp")},
			Description:   "System temporary files",
			RequiresAdmin: true,
			Category:      "system",
		},
		{
			Name:          "prefetch",
			Paths:         []string{filepath.Join(WinDir(), "Prefetch")},
			Description:   "Application prefetch traces (rebuilt on demand)",
			RequiresAdmin: true,
			Category:      "system",
		},
		{
			Name:          "update-cache",
			Paths:         []string{filepath.Join(WinDir(), "SoftwareDistribution", "Download")},
			Description:   "Windows Update download cache",
			RequiresAdmin: true,
			Category:      "system",
		},
		{
			Name:          "delivery-optimization",
			Paths:         []string{filepath.Join(WinDir(), "SoftwareDistribution", "DeliveryOptimization")},
			Description:   "Delivery Optimization peer-to-peer update cache",
			RequiresAdmin: true,
			Category:      "system",
		},
		{
			Name: "error-reports",
			Paths: []string{
				filepath.Join(local, "Microsoft", "Windows", "WER", "ReportArchive"),
				filepath.Join(local, "Microsoft", "Windows", "WER", "ReportQueue"),
				filepath.Join(programData(), "Microsoft", "Windows", "WER", "ReportArchive"),
				filepath.Join(programData(), "Microsoft", "Windows", "WER", "ReportQueue"),
			},
			Description: "Windows Error Reporting crash dumps and reports",
			Category:    "system",
		},
		{
			Name:          "minidumps",
			Paths:         []string{filepath.Join(WinDir(), "Minidump")},
			Description:   "Kernel minidump crash files",
			RequiresAdmin: true,
			Category:      "system",
		},
		{
			Name: "chrome-cache",
			Paths: []string{
				filepath.Join(local, "Google", "Chrome", "User Data", "Default", "Cache"),
				filepath.Join(local, "Google", "Chrome", "User Data", "Default", "Code Cache"),
				filepath.Join(local, "Google", "Chrome", "User Data", "Default", "GPUCache"),
			},
			Description: "Google Chrome browser cache",
			Category:    "browser",
		},
		{
			Name: "edge-cache",
			Paths: []string{
				filepath.Join(local, "Microsoft", "Edge", "User Data", "Default", "Cache"),
				filepath.Join(local, "Microsoft", "Edge", "User Data", "Default", "Code Cache"),
				filepath.Join(local, "Microsoft", "Edge", "User Data", "Default", "GPUCache"),
			},
			Description: "Microsoft Edge browser cache",
			Category:    "browser",
		},
		{
			Name: "firefox-cache",
			Paths: []string{
				filepath.Join(local, "Mozilla", "Firefox", "Profiles", "*", "cache2"),
				filepath.Join(local, "Mozilla", "Firefox", "Profiles", "*", "startupCache"),
			},
			Description: "Mozilla Firefox browser cache",
			Category:    "browser",
		},
		{
			Name:        "npm-cache",
			Paths:       []string{filepath.Join(roaming, "npm-cache")},
			Description: "npm package manager cache",
			Category:    "dev",
		},
		{
			Name:        "pip-cache",
			Paths:       []string{filepath.Join(local, "pip", "Cache")},
			Description: "Python pip package cache",
			Category:    "dev",
		},
	}
}

// PresetByName looks a preset up by its command-line name.
func PresetByName(name string) (Preset, bool) {
	for _, p := range GetPresets() {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// ─── Protection tables ───────────────────────────────────────────────────────

// CriticalSystemFiles returns the absolute paths of objects whose removal
// leaves the machine unbootable. They are matched exactly, never by base
// name: a stray "bootmgr" in a Downloads folder is an ordinary file.
func CriticalSystemFiles() []string {
	if runtime.GOOS != "windows" {
		return []string{"/vmlinuz", "/initrd.img", "/swapfile"}
	}
	w := WinDir()
	sd := systemDrive()
	sys32 := filepath.Join(w, "System32")
	return []string{
		filepath.Join(sd, "bootmgr"),
		filepath.Join(sd, "BOOTNXT"),
		filepath.Join(sd, "pagefile.sys"),
		filepath.Join(sd, "hiberfil.sys"),
		filepath.Join(sd, "swapfile.sys"),
		filepath.Join(sys32, "ntoskrnl.exe"),
		filepath.Join(sys32, "hal.dll"),
		filepath.Join(sys32, "winload.exe"),
		filepath.Join(sys32, "winload.efi"),
		filepath.Join(sys32, "winresume.exe"),
		filepath.Join(sys32, "winresume.efi"),
	}
}

// ProtectedTrees returns directories that may not be deleted nor have any
// of their descendants deleted.
func ProtectedTrees() []string {
	if runtime.GOOS != "windows" {
		return []string{"/etc", "/bin", "/sbin", "/usr", "/boot", "/lib", "/lib64", "/proc", "/sys", "/dev"}
	}
	w := WinDir()
	sd := systemDrive()
	return []string{
		filepath.Join(w, "System32"),
		filepath.Join(w, "SysWOW64"),
		filepath.Join(w, "WinSxS"),
		filepath.Join(w, "assembly"),
		filepath.Join(w, "servicing"),
		filepath.Join(w, "Installer"),
		filepath.Join(w, "Boot"),
		filepath.Join(sd, "Boot"),
		filepath.Join(sd, "EFI"),
		filepath.Join(sd, "Recovery"),
		filepath.Join(sd, "System Volume Information"),
	}
}

// SealedDirs returns directories that may neither be deleted nor have
// their contents cleaned wholesale. Subdirectories below them can still be
// targeted individually unless another table covers them.
func SealedDirs() []string {
	if runtime.GOOS != "windows" {
		return []string{"/", "/home", "/var", "/root", "/opt", "/srv"}
	}
	sd := systemDrive()
	return []string{
		sd,
		WinDir(),
		programFiles(),
		programFilesX86(),
		programData(),
		filepath.Join(sd, "Users"),
	}
}

// ProtectedRoots returns directories that may not be deleted themselves
// although their contents may be cleaned.
func ProtectedRoots() []string {
	var roots []string
	if runtime.GOOS != "windows" {
		roots = append(roots, "/tmp", "/var/tmp")
	} else {
		roots = append(roots,
			filepath.Join(WinDir(), "Temp"),
			expand("%USERPROFILE%"),
			expand("%LOCALAPPDATA%"),
			expand("%APPDATA%"),
		)
	}
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, home)
	}
	if tmp := os.TempDir(); tmp != "" {
		roots = append(roots, tmp)
	}
	return roots
}

// CriticalProcesses returns lower-case image names that are never
// terminated, even when they hold a lock on a target.
func CriticalProcesses() []string {
	if runtime.GOOS != "windows" {
		return []string{"init", "systemd", "launchd", "kthreadd"}
	}
	return []string{
		"system",
		"system idle process",
		"registry",
		"memory compression",
		"smss.exe",
		"csrss.exe",
		"wininit.exe",
		"winlogon.exe",
		"services.exe",
		"lsass.exe",
		"svchost.exe",
		"explorer.exe",
	}
}
