// Package steps implements the procedures that switch a Raspberry Pi OS
// install between a writable root and a tmpfs overlay root.
package steps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zoro11031/ror/internal/config"
	"github.com/zoro11031/ror/internal/system"
	"github.com/zoro11031/ror/internal/ui"
)

// Options tune how strictly create treats deviations from a stock install.
type Options struct {
	// BestEffort reports patch and verification misses as warnings instead
	// of failing.
	BestEffort bool
	// SkipVerify skips inspecting the regenerated boot image.
	SkipVerify bool
}

// ReadOnlyRoot runs the create, enable, disable and destroy procedures.
type ReadOnlyRoot struct {
	fs       *system.FileSystem
	runner   system.CommandRunner
	kernel   system.Kernel
	paths    config.Paths
	settings config.Settings
	state    *config.StateStore
	ui       *ui.UI
	logger   *slog.Logger
	opts     Options
}

// NewReadOnlyRoot creates a new ReadOnlyRoot instance
func NewReadOnlyRoot(fs *system.FileSystem, runner system.CommandRunner, kernel system.Kernel, paths config.Paths, settings config.Settings, ui *ui.UI, logger *slog.Logger) *ReadOnlyRoot {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadOnlyRoot{
		fs:       fs,
		runner:   runner,
		kernel:   kernel,
		paths:    paths,
		settings: settings,
		state:    config.NewStateStore(fs.Fs(), paths),
		ui:       ui,
		logger:   logger,
	}
}

// SetOptions replaces the create options
func (r *ReadOnlyRoot) SetOptions(opts Options) {
	r.opts = opts
}

// State returns the current lifecycle state.
func (r *ReadOnlyRoot) State() (config.State, error) {
	state, source, err := r.state.Load()
	if err != nil {
		return "", err
	}
	if source == config.SourceInferred && state != config.StateAbsent {
		r.logger.Debug("no state file, using backup files", "state", state)
	}
	return state, nil
}

// backupAction copies path to its backup location.
func (r *ReadOnlyRoot) backupAction(name, path string) action {
	backup := config.BackupPath(path)
	return action{
		name: name,
		do: func(context.Context) error {
			return r.fs.CopyFile(path, backup)
		},
		undo: func() error {
			return r.fs.RemoveFile(backup)
		},
	}
}

// restoreFromBackup reverts path to its backup copy, keeping the backup.
func (r *ReadOnlyRoot) restoreFromBackup(path string) func() error {
	return func() error {
		return r.fs.CopyFile(config.BackupPath(path), path)
	}
}

// patch applies replacements to path. Misses fail unless BestEffort is set.
func (r *ReadOnlyRoot) patch(path string, replacements []system.Replacement) error {
	results, err := r.fs.Edit(path, replacements)
	if err != nil {
		return err
	}

	misses := system.Unapplied(results)
	if len(misses) == 0 {
		return nil
	}

	for _, m := range misses {
		r.logger.Debug("patch target missing", "path", path, "old", firstLine(m.Old))
	}
	if r.opts.BestEffort {
		r.ui.Warningf("%d of %d patches did not match %s", len(misses), len(results), path)
		return nil
	}
	return fmt.Errorf("%w: %d of %d patches did not match %s", ErrPatchNotApplied, len(misses), len(results), path)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
