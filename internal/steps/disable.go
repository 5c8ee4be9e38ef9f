package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/zoro11031/ror/internal/config"
)

// Disable restores the boot config and kernel command line from their
// backups so the next boot uses the writable root. The overlay boot
// infrastructure stays in place for a later Enable.
func (r *ReadOnlyRoot) Disable(ctx context.Context) error {
	state, err := r.State()
	if err != nil {
		return err
	}

	switch state {
	case config.StateAbsent:
		return fmt.Errorf("%w, nothing to disable", ErrNotCreated)
	case config.StateDisabled:
		return fmt.Errorf("%w, nothing to disable", ErrNotEnabled)
	}

	var actions []action
	for _, f := range r.bootFiles() {
		actions = append(actions, r.restoreAction(f))
	}
	actions = append(actions, r.saveStateAction(config.StateDisabled, r.state.KernelRelease(), nil))

	tx := newTransaction(r.ui, r.logger)
	err = tx.run(ctx, actions...)
	if err != nil {
		return fmt.Errorf("disable failed: %w", err)
	}

	r.ui.Success("Read-only root disabled")
	r.ui.Info("Reboot to boot into the writable root")
	return nil
}

// bootFile is a boot file enable changes, with a check for that change.
type bootFile struct {
	name    string
	path    string
	changed func(content string) bool
}

func (r *ReadOnlyRoot) bootFiles() []bootFile {
	return []bootFile{
		{
			name: "boot config",
			path: r.paths.BootConfig,
			changed: func(content string) bool {
				return strings.Contains(content, r.settings.BootStanza())
			},
		},
		{
			name: "kernel command line",
			path: r.paths.Cmdline,
			changed: func(content string) bool {
				return strings.HasPrefix(content, r.settings.CmdlinePrefix())
			},
		},
	}
}

// restoreAction moves the backup of f back over f. Without a backup a file
// that no longer carries the change was restored by an earlier, interrupted
// disable and is left alone; otherwise the missing backup fails the step.
func (r *ReadOnlyRoot) restoreAction(f bootFile) action {
	backup := config.BackupPath(f.path)
	return action{
		name: "restore " + f.name,
		do: func(context.Context) error {
			exists, err := r.fs.FileExists(backup)
			if err != nil {
				return err
			}
			if !exists {
				data, err := r.fs.ReadFile(f.path)
				if err != nil {
					return err
				}
				if !f.changed(string(data)) {
					r.ui.Infof("%s already restored", f.path)
					return nil
				}
			}
			return r.fs.Move(backup, f.path)
		},
	}
}
