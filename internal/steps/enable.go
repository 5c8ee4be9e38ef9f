package steps

import (
	"context"
	"fmt"

	"github.com/zoro11031/ror/internal/config"
)

// Enable switches the next boot back to the overlay root after Disable.
// Calling it while already enabled changes nothing.
func (r *ReadOnlyRoot) Enable(ctx context.Context) error {
	state, err := r.State()
	if err != nil {
		return err
	}

	switch state {
	case config.StateAbsent:
		return fmt.Errorf("%w, run create first", ErrNotCreated)
	case config.StateEnabled:
		r.ui.Info("Read-only root already enabled!")
		return nil
	}

	backups, err := r.state.BootBackupsExist()
	if err != nil {
		return err
	}
	if backups {
		r.logger.Warn("boot backups present while state is disabled", "state_file", r.state.Path())
		r.ui.Info("Read-only root already enabled!")
		return nil
	}

	p := r.paths
	tx := newTransaction(r.ui, r.logger)
	err = tx.run(ctx,
		r.backupAction("back up boot config", p.BootConfig),
		r.backupAction("back up kernel command line", p.Cmdline),
		r.appendStanzaAction(),
		r.prependCmdlineAction(),
		r.saveStateAction(config.StateEnabled, r.state.KernelRelease(), func() error {
			return r.state.Save(config.StateDisabled, r.state.KernelRelease())
		}),
	)
	if err != nil {
		return fmt.Errorf("enable failed: %w", err)
	}

	r.ui.Success("Read-only root enabled")
	r.ui.Info("Reboot to boot into the overlay root")
	return nil
}
