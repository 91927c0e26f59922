package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/purewipe/internal/acl"
	"github.com/lakshaymaurya-felt/purewipe/internal/config"
	"github.com/lakshaymaurya-felt/purewipe/internal/events"
	"github.com/lakshaymaurya-felt/purewipe/internal/fsops"
	"github.com/lakshaymaurya-felt/purewipe/internal/helper"
	"github.com/lakshaymaurya-felt/purewipe/internal/ladder"
	"github.com/lakshaymaurya-felt/purewipe/internal/lock"
	"github.com/lakshaymaurya-felt/purewipe/internal/logging"
	"github.com/lakshaymaurya-felt/purewipe/internal/safety"
)

// engine holds what every command builds from the config file and the
// persistent flags.
type engine struct {
	cfg     *config.Config
	log     zerolog.Logger
	logSink io.Closer
	guard   *safety.Guard
	tools   *helper.Tools
	run     helper.Runner
}

func loadEngine(cmd *cobra.Command) (*engine, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	if cmd.Flags().Changed("unrestricted") {
		cfg.Unrestricted = unrestricted
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}

	opts := logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}
	if debug {
		opts.Level = "debug"
		opts.Console = os.Stderr
	}
	log, closer, err := logging.New(opts)
	if err != nil {
		return nil, err
	}

	lists := safety.DefaultLists(cfg.ExtraCriticalPaths, cfg.ExtraProtectedPaths)
	return &engine{
		cfg:     cfg,
		log:     log.With().Str("command", cmd.Name()).Logger(),
		logSink: closer,
		guard:   safety.NewGuard(lists, cfg.Unrestricted),
		tools:   helper.NewTools(cfg.ToolsDir),
		run:     helper.ExecRunner{},
	}, nil
}

func (e *engine) Close() error {
	return e.logSink.Close()
}

// detector returns a lock detector reporting through rep.
func (e *engine) detector(rep events.Reporter) *lock.Detector {
	return lock.NewDetector(lock.Config{
		Source:            lock.NewSystemSource(),
		Guard:             e.guard,
		Handles:           helper.NewHandleTool(e.tools, e.run, e.cfg.Timeouts.HandleTool),
		Disposition:       fsops.MarkForDeletion,
		CriticalProcesses: config.CriticalProcesses(),
		Reporter:          rep,
	})
}

// newLadder returns the deletion ladder. Lock breaking is wired only when
// lock detection is enabled.
func (e *engine) newLadder(rep events.Reporter, rec ladder.Recorder) *ladder.Ladder {
	elevated := helper.NewElevatedRunner(e.tools, e.run, e.cfg.Timeouts.FileCommand, e.cfg.Timeouts.DirCommand)
	cfg := ladder.Config{
		Guard:       e.guard,
		Owner:       acl.New(),
		Strategies:  ladder.DefaultStrategies(elevated),
		Reporter:    rep,
		SettleDelay: e.cfg.Timeouts.Settle,
		Recorder:    rec,
	}
	if e.cfg.DetectLocks {
		cfg.Breaker = e.detector(rep)
	}
	return ladder.New(cfg)
}

// ensureTools makes sure the helper utilities are available for a forced
// run, extracting them from downloaded archives when possible. It returns
// a warning for every tool still missing.
func (e *engine) ensureTools() []string {
	_, errHandle := e.tools.Handle()
	_, errPsExec := e.tools.PsExec()
	if errHandle == nil && errPsExec == nil {
		return nil
	}

	written, err := e.tools.Install()
	if err != nil {
		e.log.Warn().Err(err).Msg("tool installation failed")
	}
	for _, w := range written {
		e.log.Info().Str("path", w).Msg("installed helper tool")
	}

	var warnings []string
	if _, err := e.tools.Handle(); errors.Is(err, helper.ErrUnavailable) {
		warnings = append(warnings, "handle.exe not found: open handles can only be released by marking files for deletion")
	}
	if _, err := e.tools.PsExec(); errors.Is(err, helper.ErrUnavailable) {
		warnings = append(warnings, "PsExec not found: elevated deletes will run without SYSTEM rights")
	}
	return warnings
}
