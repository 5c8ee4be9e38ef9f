package config

// Configuration key constants to prevent typos and enable autocomplete
const (
	// Filesystem layout
	KeyBootDir           = "ROR_BOOT_DIR"            // Boot partition mount point (/boot)
	KeyInitramfsToolsDir = "ROR_INITRAMFS_TOOLS_DIR" // initramfs-tools data dir (/usr/share/initramfs-tools)
	KeyStateFile         = "ROR_STATE_FILE"          // State marker; empty means <boot dir>/ror.state

	// Boot image selection
	KeyKernelImage = "ROR_KERNEL_IMAGE" // Kernel image named in config.txt
	KeyInitrdName  = "ROR_INITRD_NAME"  // Target name of the regenerated initramfs

	// Overlay boot path
	KeyBootParam     = "ROR_BOOT_PARAM"     // Token prepended to cmdline.txt
	KeyOverlayModule = "ROR_OVERLAY_MODULE" // Kernel module bundled into the image
)

// State file keys
const (
	KeyState         = "ROR_STATE"
	KeyKernelRelease = "ROR_KERNEL_RELEASE"
	KeyUpdated       = "ROR_UPDATED"
)

// Default values for configuration keys
var Defaults = map[string]string{
	KeyBootDir:           "/boot",
	KeyInitramfsToolsDir: "/usr/share/initramfs-tools",
	KeyKernelImage:       "kernel7.img",
	KeyInitrdName:        "initrd7.img",
	KeyBootParam:         "boot=overlay",
	KeyOverlayModule:     "overlay",
}
