package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/purewipe/internal/config"
	"github.com/lakshaymaurya-felt/purewipe/internal/core"
	"github.com/lakshaymaurya-felt/purewipe/internal/fsops"
	"github.com/lakshaymaurya-felt/purewipe/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check what forced deletion can do on this machine",
	Long:  "Report privileges, helper tools, pending reboot deletions and free space.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, ui.TitleStyle().Render("purewipe "+appVersion))
		row(out, "System", core.SystemVersionString())
		if core.IsElevated() {
			row(out, "Privileges", ui.SuccessStyle().Render("administrator"))
		} else {
			row(out, "Privileges", ui.WarningStyle().Render("standard user (force mode is limited)"))
		}
		row(out, "Config", configFileLabel())
		row(out, "Lock detection", onOff(e.cfg.DetectLocks))
		row(out, "Unrestricted", onOff(e.cfg.Unrestricted))

		row(out, "handle.exe", toolLabel(e.tools.Handle()))
		row(out, "PsExec", toolLabel(e.tools.PsExec()))
		row(out, "Tools dir", e.tools.Dir())

		if pending, err := fsops.PendingRebootDeletes(); err == nil {
			row(out, "Pending reboot", fmt.Sprintf("%d object(s)", len(pending)))
		}
		if e.cfg.History.Enabled {
			row(out, "History", e.cfg.History.DatabasePath)
		} else {
			row(out, "History", "off (enable with clean --history)")
		}

		if usage, err := disk.UsageWithContext(cmd.Context(), systemRoot()); err == nil {
			row(out, "Free space", fmt.Sprintf("%s of %s on %s",
				core.FormatSize(int64(usage.Free)), core.FormatSize(int64(usage.Total)), usage.Path))
		}
		return nil
	},
}

func row(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s %-16s %s\n", ui.IconBullet, label, value)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func toolLabel(path string, err error) string {
	if err != nil {
		return ui.MutedStyle().Render("not found")
	}
	return path
}

func configFileLabel() string {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err != nil {
		return path + ui.MutedStyle().Render(" (defaults)")
	}
	return path
}

func systemRoot() string {
	if runtime.GOOS != "windows" {
		return "/"
	}
	if d := os.Getenv("SYSTEMDRIVE"); d != "" {
		return d + `\`
	}
	return `C:\`
}
