package steps

import (
	"context"
	"fmt"

	"github.com/zoro11031/ror/internal/config"
)

// Destroy removes everything Create added and restores hook-functions. Read-
// only mode must be disabled first. Removals are not undone on failure.
func (r *ReadOnlyRoot) Destroy(ctx context.Context) error {
	state, err := r.State()
	if err != nil {
		return err
	}

	switch state {
	case config.StateAbsent:
		return fmt.Errorf("%w, nothing to destroy", ErrNotCreated)
	case config.StateEnabled:
		return ErrStillEnabled
	}

	p := r.paths
	tx := newTransaction(r.ui, r.logger)
	err = tx.run(ctx,
		r.restoreAction("restore hook-functions", p.HookFunctions),
		action{
			name: "remove overlay boot script",
			do: func(context.Context) error {
				return r.fs.RemoveFile(p.OverlayScript)
			},
		},
		action{
			name: "remove overlay-premount scripts",
			do: func(context.Context) error {
				return r.fs.RemoveDirectory(p.OverlayPremount)
			},
		},
		action{
			name: "remove overlay-bottom scripts",
			do: func(context.Context) error {
				return r.fs.RemoveDirectory(p.OverlayBottom)
			},
		},
		action{
			name: "remove boot image",
			do: func(context.Context) error {
				return r.fs.RemoveFile(p.Initrd)
			},
		},
		action{
			name: "clear state",
			do: func(context.Context) error {
				return r.state.Clear()
			},
		},
	)
	if err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}

	r.ui.Success("Read-only root removed")
	return nil
}
