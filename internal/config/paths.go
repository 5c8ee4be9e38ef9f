package config

import (
	"fmt"
	"path/filepath"
)

// BackupSuffix marks the rollback copy of a file changed by ror
const BackupSuffix = "._ror_backup_"

// BackupPath returns the rollback copy path for path
func BackupPath(path string) string {
	return path + BackupSuffix
}

// Paths is the set of files and directories ror reads and changes.
type Paths struct {
	BootDir string

	// initramfs-tools
	HookFunctions   string
	ScriptsDir      string
	LocalScript     string
	OverlayScript   string
	LocalPremount   string
	OverlayPremount string
	LocalBottom     string
	OverlayBottom   string

	// boot partition
	BootConfig string
	Cmdline    string
	Initrd     string
	StateFile  string
}

// NewPaths lays out the paths under the given boot and initramfs-tools
// directories. initrdName is the file name the regenerated image is given.
func NewPaths(bootDir, initramfsToolsDir, initrdName string) Paths {
	scripts := filepath.Join(initramfsToolsDir, "scripts")
	return Paths{
		BootDir:         bootDir,
		HookFunctions:   filepath.Join(initramfsToolsDir, "hook-functions"),
		ScriptsDir:      scripts,
		LocalScript:     filepath.Join(scripts, "local"),
		OverlayScript:   filepath.Join(scripts, "overlay"),
		LocalPremount:   filepath.Join(scripts, "local-premount"),
		OverlayPremount: filepath.Join(scripts, "overlay-premount"),
		LocalBottom:     filepath.Join(scripts, "local-bottom"),
		OverlayBottom:   filepath.Join(scripts, "overlay-bottom"),
		BootConfig:      filepath.Join(bootDir, "config.txt"),
		Cmdline:         filepath.Join(bootDir, "cmdline.txt"),
		Initrd:          filepath.Join(bootDir, initrdName),
		// The root filesystem is volatile while read-only mode is active, so
		// state lives on the boot partition.
		StateFile: filepath.Join(bootDir, "ror.state"),
	}
}

// DefaultPaths returns the paths of a stock Raspberry Pi OS install.
func DefaultPaths() Paths {
	return NewPaths(Defaults[KeyBootDir], Defaults[KeyInitramfsToolsDir], Defaults[KeyInitrdName])
}

// GeneratedInitrd is the image update-initramfs writes for release.
func (p Paths) GeneratedInitrd(release string) string {
	return filepath.Join(p.BootDir, "initrd.img-"+release)
}

// OverlayArtifacts lists what create adds to initramfs-tools, in creation order.
func (p Paths) OverlayArtifacts() []string {
	return []string{p.OverlayScript, p.OverlayPremount, p.OverlayBottom}
}

// Settings are the tunables of the overlay boot setup.
type Settings struct {
	KernelImage   string
	InitrdName    string
	BootParam     string
	OverlayModule string
}

// BootStanza is the text appended to config.txt to boot the overlay image.
func (s Settings) BootStanza() string {
	return fmt.Sprintf("\n\n\nkernel=%s\ninitramfs %s\n", s.KernelImage, s.InitrdName)
}

// CmdlinePrefix is the text prepended to cmdline.txt.
func (s Settings) CmdlinePrefix() string {
	return s.BootParam + " "
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		KernelImage:   Defaults[KeyKernelImage],
		InitrdName:    Defaults[KeyInitrdName],
		BootParam:     Defaults[KeyBootParam],
		OverlayModule: Defaults[KeyOverlayModule],
	}
}

// Resolve builds the paths and settings from the configuration, falling back
// to defaults for unset keys.
func (c *Config) Resolve() (Paths, Settings) {
	settings := Settings{
		KernelImage:   c.GetOrDefault(KeyKernelImage, ""),
		InitrdName:    c.GetOrDefault(KeyInitrdName, ""),
		BootParam:     c.GetOrDefault(KeyBootParam, ""),
		OverlayModule: c.GetOrDefault(KeyOverlayModule, ""),
	}

	paths := NewPaths(
		c.GetOrDefault(KeyBootDir, ""),
		c.GetOrDefault(KeyInitramfsToolsDir, ""),
		settings.InitrdName,
	)
	if stateFile := c.GetOrDefault(KeyStateFile, ""); stateFile != "" {
		paths.StateFile = stateFile
	}

	return paths, settings
}
