package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Timeouts bounds the external helpers and pauses of the deletion ladder.
type Timeouts struct {
	FileCommand time.Duration `yaml:"file_command"`
	DirCommand  time.Duration `yaml:"dir_command"`
	HandleTool  time.Duration `yaml:"handle_tool"`
	// RestorePoint bounds Checkpoint-Computer, which can take minutes.
	RestorePoint time.Duration `yaml:"restore_point"`
	// Settle is the pause after terminating holders or closing handles.
	Settle time.Duration `yaml:"settle"`
}

// HeartbeatCfg controls the worker's liveness signals.
type HeartbeatCfg struct {
	Interval time.Duration `yaml:"interval"`
	Watchdog time.Duration `yaml:"watchdog"`
}

// LogCfg configures the rotating log file.
type LogCfg struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// HistoryCfg configures the session audit database.
type HistoryCfg struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// MetricsCfg configures the Prometheus text-file export.
type MetricsCfg struct {
	Textfile string `yaml:"textfile"`
}

// Config is the on-disk configuration. Command-line flags override it.
type Config struct {
	// Force enables the escalation ladder for every target.
	Force bool `yaml:"force"`
	// Unrestricted lifts the critical-file and protected-tree exclusions.
	// Sealed directories and protected roots stay protected regardless.
	Unrestricted bool `yaml:"unrestricted"`
	// DetectLocks enables process enumeration before forced deletes.
	DetectLocks bool `yaml:"detect_locks"`

	ToolsDir  string       `yaml:"tools_dir"`
	Timeouts  Timeouts     `yaml:"timeouts"`
	Heartbeat HeartbeatCfg `yaml:"heartbeat"`
	Log       LogCfg       `yaml:"log"`
	History   HistoryCfg   `yaml:"history"`
	Metrics   MetricsCfg   `yaml:"metrics"`

	ExtraCriticalPaths  []string `yaml:"extra_critical_paths"`
	ExtraProtectedPaths []string `yaml:"extra_protected_paths"`
}

var (
	errNegativeTimeout = errors.New("timeouts must not be negative")
	errBadHeartbeat    = errors.New("heartbeat interval must be shorter than the watchdog")
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DetectLocks: true,
		ToolsDir:    filepath.Join(os.TempDir(), "purewipe-tools"),
		Timeouts: Timeouts{
			FileCommand:  30 * time.Second,
			DirCommand:   60 * time.Second,
			HandleTool:   15 * time.Second,
			RestorePoint: 3 * time.Minute,
			Settle:       time.Second,
		},
		Heartbeat: HeartbeatCfg{
			Interval: 500 * time.Millisecond,
			Watchdog: 10 * time.Second,
		},
		Log: LogCfg{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		History: HistoryCfg{
			DatabasePath: filepath.Join(DataDir(), "history.db"),
		},
	}
}

// DefaultPath returns the location of the per-user config file.
func DefaultPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// Load reads the config at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		return cfg, cfg.validateAndDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) validateAndDefault() error {
	def := Default()

	t := &c.Timeouts
	if t.FileCommand < 0 || t.DirCommand < 0 || t.HandleTool < 0 || t.RestorePoint < 0 || t.Settle < 0 {
		return errNegativeTimeout
	}
	if t.FileCommand == 0 {
		t.FileCommand = def.Timeouts.FileCommand
	}
	if t.RestorePoint == 0 {
		t.RestorePoint = def.Timeouts.RestorePoint
	}
	if t.DirCommand == 0 {
		t.DirCommand = def.Timeouts.DirCommand
	}
	if t.HandleTool == 0 {
		t.HandleTool = def.Timeouts.HandleTool
	}

	if c.Heartbeat.Interval <= 0 {
		c.Heartbeat.Interval = def.Heartbeat.Interval
	}
	if c.Heartbeat.Watchdog <= 0 {
		c.Heartbeat.Watchdog = def.Heartbeat.Watchdog
	}
	if c.Heartbeat.Interval >= c.Heartbeat.Watchdog {
		return errBadHeartbeat
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.ToolsDir == "" {
		c.ToolsDir = def.ToolsDir
	}
	if c.History.DatabasePath == "" {
		c.History.DatabasePath = def.History.DatabasePath
	}

	c.ToolsDir = expand(c.ToolsDir)
	c.Log.File = expand(c.Log.File)
	c.History.DatabasePath = expand(c.History.DatabasePath)
	c.Metrics.Textfile = expand(c.Metrics.Textfile)
	for i, p := range c.ExtraCriticalPaths {
		c.ExtraCriticalPaths[i] = expand(p)
	}
	for i, p := range c.ExtraProtectedPaths {
		c.ExtraProtectedPaths[i] = expand(p)
	}
	return nil
}

// configDir is %APPDATA%\purewipe on Windows and the XDG config dir elsewhere.
func configDir() string {
	if runtime.GOOS == "windows" {
		if a := appData(); a != "" {
			return filepath.Join(a, "purewipe")
		}
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "purewipe")
	}
	return filepath.Join(os.TempDir(), "purewipe")
}

// DataDir holds the history database.
func DataDir() string {
	if runtime.GOOS == "windows" {
		if l := localAppData(); l != "" {
			return filepath.Join(l, "purewipe")
		}
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "purewipe")
	}
	return filepath.Join(os.TempDir(), "purewipe")
}
