package helper

import (
	"strings"
	"text/template"
	"time"
)

// defaultRetries is how many delete attempts the elevated script makes,
// one second apart.
const defaultRetries = 10

// adminsSID is BUILTIN\Administrators; the SID form works on every locale.
const adminsSID = "*S-1-5-32-544"

var scriptTemplate = template.Must(template.New("elevated").Parse(`@echo off
takeown /f "{{.Path}}"{{if .IsDir}} /r /d y{{end}} >nul 2>&1
icacls "{{.Path}}" /grant {{.Grantee}}:F{{if .IsDir}} /t{{end}} /c /q >nul 2>&1
attrib -r -s -h "{{.Path}}" >nul 2>&1
set /a tries=0
:retry
{{if .IsDir}}rd /s /q "{{.Path}}"{{else}}del /f /q /a "{{.Path}}"{{end}} >nul 2>&1
if not exist "{{.Path}}" exit /b 0
set /a tries+=1
if %tries% geq {{.Retries}} exit /b 1
ping -n 2 127.0.0.1 >nul
goto retry
`))

type scriptData struct {
	Path    string
	IsDir   bool
	Grantee string
	Retries int
}

// RenderScript produces the batch script that takes ownership of path,
// grants administrators full control and deletes it with bounded retries.
func RenderScript(path string, isDir bool, retries int) (string, error) {
	if retries <= 0 {
		retries = defaultRetries
	}
	var b strings.Builder
	err := scriptTemplate.Execute(&b, scriptData{
		Path:    batchEscape(path),
		IsDir:   isDir,
		Grantee: adminsSID,
		Retries: retries,
	})
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(b.String(), "\n", "\r\n"), nil
}

// batchEscape doubles percent signs, which cmd expands even inside quotes.
func batchEscape(path string) string {
	return strings.ReplaceAll(path, "%", "%%")
}

// ElevatedRunner deletes an object through a one-shot script, run as
// SYSTEM through PsExec when available and directly otherwise.
type ElevatedRunner struct {
	tools       *Tools
	run         Runner
	fileTimeout time.Duration
	dirTimeout  time.Duration
}

// NewElevatedRunner returns a runner with separate timeouts for files and
// directories.
func NewElevatedRunner(tools *Tools, run Runner, fileTimeout, dirTimeout time.Duration) *ElevatedRunner {
	return &ElevatedRunner{tools: tools, run: run, fileTimeout: fileTimeout, dirTimeout: dirTimeout}
}

func (e *ElevatedRunner) timeout(isDir bool) time.Duration {
	if isDir {
		return e.dirTimeout
	}
	return e.fileTimeout
}
