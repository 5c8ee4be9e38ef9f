// Package cli wires configuration, output and the host system into the
// read-only root procedures and dispatches a mode name to the matching one.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/zoro11031/ror/internal/common"
	"github.com/zoro11031/ror/internal/config"
	"github.com/zoro11031/ror/internal/steps"
	"github.com/zoro11031/ror/internal/system"
	"github.com/zoro11031/ror/internal/ui"
)

// Options are the command line settings shared by every mode.
type Options struct {
	ConfigPath string
	AssumeYes  bool
	// KernelRelease overrides the running kernel release when set.
	KernelRelease string
	Steps         steps.Options
}

// SetupContext holds all dependencies needed by the procedures
type SetupContext struct {
	Config   *config.Config
	UI       *ui.UI
	Logger   *slog.Logger
	Paths    config.Paths
	Settings config.Settings
	Root     *steps.ReadOnlyRoot
}

// NewSetupContext creates a SetupContext operating on the host system
func NewSetupContext(opts Options, logger *slog.Logger) (*SetupContext, error) {
	return NewSetupContextWithSystem(afero.NewOsFs(), system.NewCommandRunner(), system.NewKernel(), opts, ui.New(), logger)
}

// NewSetupContextWithSystem creates a SetupContext on the given filesystem,
// command runner and kernel
func NewSetupContextWithSystem(fs afero.Fs, runner system.CommandRunner, kernel system.Kernel, opts Options, out *ui.UI, logger *slog.Logger) (*SetupContext, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cfg := config.New(fs, opts.ConfigPath)
	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	paths, settings := cfg.Resolve()
	if err := Validate(paths, settings); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", cfg.FilePath(), err)
	}

	if opts.KernelRelease != "" {
		if err := common.ValidateKernelRelease(opts.KernelRelease); err != nil {
			return nil, err
		}
		kernel = system.StaticKernel(opts.KernelRelease)
	}

	out.SetAssumeYes(opts.AssumeYes)

	root := steps.NewReadOnlyRoot(system.NewFileSystem(fs, logger), runner, kernel, paths, settings, out, logger)
	root.SetOptions(opts.Steps)

	logger.Debug("configuration loaded",
		"config", cfg.FilePath(),
		"boot_dir", paths.BootDir,
		"hook_functions", paths.HookFunctions,
		"state_file", paths.StateFile,
	)

	return &SetupContext{
		Config:   cfg,
		UI:       out,
		Logger:   logger,
		Paths:    paths,
		Settings: settings,
		Root:     root,
	}, nil
}

// Validate checks the resolved paths and settings
func Validate(paths config.Paths, settings config.Settings) error {
	var result *multierror.Error

	for name, path := range map[string]string{
		config.KeyBootDir:           paths.BootDir,
		config.KeyInitramfsToolsDir: paths.HookFunctions,
		config.KeyStateFile:         paths.StateFile,
	} {
		if err := common.ValidatePath(path); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
		}
	}

	if err := common.ValidateFileName(settings.KernelImage); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: %w", config.KeyKernelImage, err))
	}
	if err := common.ValidateFileName(settings.InitrdName); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: %w", config.KeyInitrdName, err))
	}
	if err := common.ValidateBootParam(settings.BootParam); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: %w", config.KeyBootParam, err))
	}
	if err := common.ValidateModuleName(settings.OverlayModule); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: %w", config.KeyOverlayModule, err))
	}

	return result.ErrorOrNil()
}

// ModeInfo contains metadata about a mode
type ModeInfo struct {
	Name        string
	Description string
	// Mutates reports whether the mode changes the system.
	Mutates bool
}

// GetAllModes returns information about all modes in lifecycle order
func GetAllModes() []ModeInfo {
	return []ModeInfo{
		{Name: "create", Description: "Build the overlay boot image and enable read-only root", Mutates: true},
		{Name: "enable", Description: "Boot into the overlay root again after disable", Mutates: true},
		{Name: "disable", Description: "Boot into the writable root, keeping the overlay setup", Mutates: true},
		{Name: "destroy", Description: "Remove the overlay setup after disable", Mutates: true},
		{Name: "status", Description: "Show the current read-only root state", Mutates: false},
	}
}

// RunMode executes a mode by name
func RunMode(ctx context.Context, sc *SetupContext, mode string) error {
	var err error

	switch mode {
	case "create":
		err = sc.Root.Create(ctx)
	case "enable":
		err = sc.Root.Enable(ctx)
	case "disable":
		err = sc.Root.Disable(ctx)
	case "destroy":
		err = runDestroy(ctx, sc)
	case "status":
		err = sc.Root.Status()
	default:
		return fmt.Errorf("unknown mode: %s", mode)
	}

	if err != nil {
		sc.Logger.Debug("mode failed", "mode", mode, "err", err)
		return err
	}
	return nil
}

func runDestroy(ctx context.Context, sc *SetupContext) error {
	sc.UI.Header("Destroy read-only root")
	sc.UI.Warning("This removes the overlay boot script, its hook directories and the boot image")
	sc.UI.Warningf("  %s", sc.Paths.Initrd)

	confirm, err := sc.UI.Confirm("Are you sure you want to destroy the read-only root setup?")
	if err != nil {
		return err
	}
	if !confirm {
		sc.UI.Info("Destroy cancelled")
		return nil
	}

	return sc.Root.Destroy(ctx)
}
