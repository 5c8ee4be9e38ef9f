package steps

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/zoro11031/ror/internal/config"
)

// Artifact is a file or directory managed by ror and whether it exists.
type Artifact struct {
	Name    string
	Path    string
	Present bool
}

// Report describes the current read-only root setup.
type Report struct {
	State         config.State
	Source        config.StateSource
	KernelRelease string
	// RecordedRelease is the release create built the boot image for.
	RecordedRelease string
	Artifacts       []Artifact
	// InitrdSize is zero when the boot image is absent.
	InitrdSize int64
	// Warnings describe inconsistencies that need attention.
	Warnings []string
}

// Inspect collects the current state without changing anything.
func (r *ReadOnlyRoot) Inspect() (*Report, error) {
	state, source, err := r.state.Load()
	if err != nil {
		return nil, err
	}

	report := &Report{
		State:           state,
		Source:          source,
		RecordedRelease: r.state.KernelRelease(),
	}

	if release, err := r.kernel.Release(); err == nil {
		report.KernelRelease = release
	} else {
		r.logger.Debug("kernel release unavailable", "err", err)
	}

	p := r.paths
	entries := []struct{ name, path string }{
		{"hook-functions backup", config.BackupPath(p.HookFunctions)},
		{"boot config backup", config.BackupPath(p.BootConfig)},
		{"cmdline backup", config.BackupPath(p.Cmdline)},
		{"overlay boot script", p.OverlayScript},
		{"overlay-premount scripts", p.OverlayPremount},
		{"overlay-bottom scripts", p.OverlayBottom},
		{"boot image", p.Initrd},
		{"state file", p.StateFile},
	}
	for _, e := range entries {
		present, err := r.fs.FileExists(e.path)
		if err != nil {
			return nil, err
		}
		report.Artifacts = append(report.Artifacts, Artifact{Name: e.name, Path: e.path, Present: present})
	}

	if size, err := r.fs.GetFileSize(p.Initrd); err == nil {
		report.InitrdSize = size
	}

	if state == config.StateEnabled {
		warnings, err := r.checkBootFiles()
		if err != nil {
			return nil, err
		}
		report.Warnings = warnings
	}

	return report, nil
}

// checkBootFiles looks for boot files whose backup is gone while the state
// still says enabled, as left by an interrupted disable.
func (r *ReadOnlyRoot) checkBootFiles() ([]string, error) {
	var warnings []string
	for _, f := range r.bootFiles() {
		present, err := r.fs.FileExists(config.BackupPath(f.path))
		if err != nil {
			return nil, err
		}
		if present {
			continue
		}

		data, err := r.fs.ReadFile(f.path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s has no backup and cannot be read: %v", f.path, err))
			continue
		}
		if f.changed(string(data)) {
			warnings = append(warnings, fmt.Sprintf("%s has no backup but still carries the overlay change, undo it by hand and run 'ror disable'", f.path))
		} else {
			warnings = append(warnings, fmt.Sprintf("%s is already restored, run 'ror disable' to finish disabling", f.path))
		}
	}
	return warnings, nil
}

// Status prints the report produced by Inspect.
func (r *ReadOnlyRoot) Status() error {
	report, err := r.Inspect()
	if err != nil {
		return fmt.Errorf("failed to inspect read-only root: %w", err)
	}

	r.ui.Header("Read-only root status")
	r.ui.Field("State", fmt.Sprintf("%s (%s)", report.State, report.Source))
	if report.KernelRelease != "" {
		r.ui.Field("Running kernel", report.KernelRelease)
	}
	if report.RecordedRelease != "" {
		r.ui.Field("Image built for", report.RecordedRelease)
		if report.KernelRelease != "" && report.KernelRelease != report.RecordedRelease {
			r.ui.Warning("Running kernel differs from the one the boot image was built for")
		}
	}
	if report.InitrdSize > 0 {
		r.ui.Field("Boot image size", humanize.IBytes(uint64(report.InitrdSize)))
	}

	for _, w := range report.Warnings {
		r.ui.Warning(w)
	}

	r.ui.Separator()
	for _, a := range report.Artifacts {
		if a.Present {
			r.ui.Successf("%s: %s", a.Name, a.Path)
		} else {
			r.ui.Infof("%s: not present", a.Name)
		}
	}
	return nil
}
