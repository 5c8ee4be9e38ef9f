package steps

import (
	"fmt"

	"github.com/zoro11031/ror/internal/config"
)

// checkPrerequisites verifies that create can run to completion before it
// changes anything: the stock files it copies and edits must exist and
// nothing it would create may be present yet.
func (r *ReadOnlyRoot) checkPrerequisites() error {
	r.ui.Info("Checking prerequisites...")

	p := r.paths
	required := []struct {
		path string
		dir  bool
	}{
		{p.HookFunctions, false},
		{p.LocalScript, false},
		{p.LocalPremount, true},
		{p.LocalBottom, true},
		{p.BootConfig, false},
		{p.Cmdline, false},
	}

	var missing []string
	for _, req := range required {
		var (
			ok  bool
			err error
		)
		if req.dir {
			ok, err = r.fs.DirectoryExists(req.path)
		} else {
			ok, err = r.fs.FileExists(req.path)
		}
		if err != nil {
			return err
		}

		if ok {
			r.ui.Successf("  ✓ %s", req.path)
		} else {
			r.ui.Errorf("  ✗ %s is missing", req.path)
			missing = append(missing, req.path)
		}
	}

	if len(missing) > 0 {
		r.ui.Info("Is this a Raspberry Pi OS install with initramfs-tools?")
		return fmt.Errorf("missing required files: %v", missing)
	}

	leftovers := append(p.OverlayArtifacts(),
		p.Initrd,
		config.BackupPath(p.BootConfig),
		config.BackupPath(p.Cmdline),
	)

	var present []string
	for _, path := range leftovers {
		ok, err := r.fs.FileExists(path)
		if err != nil {
			return err
		}
		if ok {
			r.ui.Errorf("  ✗ %s already exists", path)
			present = append(present, path)
		}
	}

	if len(present) > 0 {
		r.ui.Info("Remove these files left over from an earlier setup, then run create again")
		return fmt.Errorf("refusing to overwrite existing files: %v", present)
	}

	r.ui.Success("Prerequisites met")
	return nil
}
