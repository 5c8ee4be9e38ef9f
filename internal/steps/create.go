package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/zoro11031/ror/internal/config"
)

// Create builds the overlay boot infrastructure and enables read-only mode.
// Completed steps are undone when a later one fails.
func (r *ReadOnlyRoot) Create(ctx context.Context) error {
	state, err := r.State()
	if err != nil {
		return err
	}
	if state != config.StateAbsent {
		return fmt.Errorf("%w (state %s), run destroy first", ErrAlreadyCreated, state)
	}

	release, err := r.kernel.Release()
	if err != nil {
		return err
	}

	if err := r.checkPrerequisites(); err != nil {
		return err
	}

	r.ui.Infof("Setting up read-only root for kernel %s...", release)

	p := r.paths
	tx := newTransaction(r.ui, r.logger)
	err = tx.run(ctx,
		r.backupAction("back up hook-functions", p.HookFunctions),
		r.backupAction("back up boot config", p.BootConfig),
		r.backupAction("back up kernel command line", p.Cmdline),
		action{
			name: "patch hook-functions",
			do: func(context.Context) error {
				return r.patch(p.HookFunctions, hookFunctionsPatch(r.settings.OverlayModule))
			},
			undo: r.restoreFromBackup(p.HookFunctions),
		},
		action{
			name: "create overlay boot script",
			do: func(context.Context) error {
				return r.fs.CopyFile(p.LocalScript, p.OverlayScript)
			},
			undo: func() error {
				return r.fs.RemoveFile(p.OverlayScript)
			},
		},
		r.copyTreeAction("create overlay-premount scripts", p.LocalPremount, p.OverlayPremount),
		r.copyTreeAction("create overlay-bottom scripts", p.LocalBottom, p.OverlayBottom),
		action{
			name: "patch overlay boot script",
			do: func(context.Context) error {
				return r.patch(p.OverlayScript, overlayScriptPatches())
			},
		},
		action{
			name: "regenerate boot image",
			do: func(ctx context.Context) error {
				return r.regenerateInitrd(ctx, release)
			},
			undo: func() error {
				return r.fs.RemoveFile(p.Initrd)
			},
		},
		action{
			name: "verify boot image",
			do: func(context.Context) error {
				return r.verifyInitrd()
			},
		},
		r.appendStanzaAction(),
		r.prependCmdlineAction(),
		r.saveStateAction(config.StateEnabled, release, func() error {
			return r.state.Clear()
		}),
	)
	if err != nil {
		return fmt.Errorf("create failed: %w", err)
	}

	r.ui.Success("Read-only root created and enabled")
	r.ui.Info("Reboot to boot into the overlay root")
	return nil
}

func (r *ReadOnlyRoot) copyTreeAction(name, src, dst string) action {
	return action{
		name: name,
		do: func(context.Context) error {
			return r.fs.CopyTree(src, dst)
		},
		undo: func() error {
			return r.fs.RemoveDirectory(dst)
		},
	}
}

func (r *ReadOnlyRoot) appendStanzaAction() action {
	return action{
		name: "add overlay stanza to boot config",
		do: func(context.Context) error {
			return r.fs.Append(r.paths.BootConfig, r.settings.BootStanza())
		},
		undo: r.restoreFromBackup(r.paths.BootConfig),
	}
}

func (r *ReadOnlyRoot) prependCmdlineAction() action {
	return action{
		name: "add boot parameter to kernel command line",
		do: func(context.Context) error {
			return r.fs.Prepend(r.paths.Cmdline, r.settings.CmdlinePrefix())
		},
		undo: r.restoreFromBackup(r.paths.Cmdline),
	}
}

func (r *ReadOnlyRoot) saveStateAction(state config.State, release string, undo func() error) action {
	return action{
		name: "record state",
		do: func(context.Context) error {
			return r.state.Save(state, release)
		},
		undo: undo,
	}
}

// regenerateInitrd runs update-initramfs for release and renames the image
// it writes to the configured initrd name.
func (r *ReadOnlyRoot) regenerateInitrd(ctx context.Context, release string) error {
	r.ui.Infof("Running update-initramfs for %s (this can take a while)...", release)

	output, err := r.runner.Run(ctx, "update-initramfs", "-c", "-k", release)
	if out := strings.TrimSpace(output); out != "" {
		r.ui.Print(out)
	}
	if err != nil {
		return fmt.Errorf("update-initramfs failed: %w", err)
	}

	generated := r.paths.GeneratedInitrd(release)
	exists, err := r.fs.FileExists(generated)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("update-initramfs did not produce %s", generated)
	}

	if err := r.fs.Move(generated, r.paths.Initrd); err != nil {
		return err
	}

	r.ui.Successf("Boot image written to %s", r.paths.Initrd)
	return nil
}

// verifyInitrd checks that the boot image carries the overlay module and
// the overlay boot script.
func (r *ReadOnlyRoot) verifyInitrd() error {
	if r.opts.SkipVerify {
		r.logger.Debug("boot image verification skipped")
		return nil
	}

	report, err := r.fs.InspectInitramfs(r.paths.Initrd)
	if err != nil {
		if r.opts.BestEffort {
			r.ui.Warningf("Could not verify boot image: %v", err)
			return nil
		}
		return err
	}

	var missing []string
	switch module := r.settings.OverlayModule; {
	case report.HasModule(module):
	case report.IsBuiltin(module):
		r.ui.Warningf("No %s module file in the boot image, the kernel has it built in", module)
	default:
		missing = append(missing, module+" module")
	}
	if !report.HasFile(overlayScriptEntry) {
		missing = append(missing, overlayScriptEntry)
	}

	if len(missing) == 0 {
		r.ui.Successf("Boot image contains the overlay module and boot script (%d entries)", len(report.Files))
		return nil
	}

	if r.opts.BestEffort {
		r.ui.Warningf("Boot image is missing: %s", strings.Join(missing, ", "))
		return nil
	}
	return fmt.Errorf("%w: missing %s (use --skip-verify if the image is known to be good)",
		ErrImageIncomplete, strings.Join(missing, ", "))
}
