package system

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Kernel provides metadata about the running kernel.
type Kernel interface {
	Release() (string, error)
}

// UnameKernel reads kernel metadata with uname(2).
type UnameKernel struct{}

// NewKernel returns the host Kernel implementation.
func NewKernel() Kernel {
	return UnameKernel{}
}

// Release returns the running kernel release, e.g. "6.1.21-v7+".
func (UnameKernel) Release() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", fmt.Errorf("failed to read kernel release: %w", err)
	}

	release := unix.ByteSliceToString(uts.Release[:])
	if release == "" {
		return "", fmt.Errorf("failed to read kernel release: empty value")
	}
	return release, nil
}

// StaticKernel reports a fixed release. It is used when the target release
// is given explicitly instead of read from the running system.
type StaticKernel string

// Release returns the fixed release.
func (k StaticKernel) Release() (string, error) {
	if k == "" {
		return "", fmt.Errorf("kernel release is empty")
	}
	return string(k), nil
}
