package common

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePath validates that a path is absolute
func ValidatePath(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute: %s", path)
	}
	return nil
}

// ValidateFileName validates a bare file name on the boot partition, such as
// the kernel image or initrd named in config.txt
func ValidateFileName(name string) error {
	if name == "" {
		return fmt.Errorf("file name cannot be empty")
	}

	if name == "." || name == ".." {
		return fmt.Errorf("invalid file name: %s", name)
	}

	if strings.ContainsAny(name, "/ \t\n") {
		return fmt.Errorf("file name must not contain slashes or whitespace: %q", name)
	}

	return nil
}

// ValidateBootParam validates a single kernel command line token
func ValidateBootParam(param string) error {
	if param == "" {
		return fmt.Errorf("boot parameter cannot be empty")
	}

	if strings.ContainsAny(param, " \t\n") {
		return fmt.Errorf("boot parameter must be a single token: %q", param)
	}

	if strings.HasPrefix(param, "=") {
		return fmt.Errorf("boot parameter has no name: %s", param)
	}

	return nil
}

// ValidateModuleName validates a kernel module name
func ValidateModuleName(module string) error {
	if module == "" {
		return fmt.Errorf("module name cannot be empty")
	}

	if len(module) > 55 {
		return fmt.Errorf("module name too long (max 55 characters): %s", module)
	}

	for _, c := range module {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-') {
			return fmt.Errorf("module name contains invalid character: %s", module)
		}
	}

	return nil
}

// ValidateKernelRelease validates a kernel release string as printed by
// uname -r
func ValidateKernelRelease(release string) error {
	if release == "" {
		return fmt.Errorf("kernel release cannot be empty")
	}

	if len(release) > 64 {
		return fmt.Errorf("kernel release too long: %s", release)
	}

	if strings.ContainsAny(release, "/ \t\n") || release == "." || release == ".." {
		return fmt.Errorf("invalid kernel release: %q", release)
	}

	return nil
}
