package steps

import "github.com/zoro11031/ror/internal/system"

// hookModulesLine is the module list initramfs-tools' hook-functions always
// adds to the image on Raspberry Pi OS.
const hookModulesLine = `modules="$modules ehci-pci ehci-orion ehci-hcd ohci-hcd ohci-pci uhci-hcd usbhid`

// hookFunctionsPatch appends module to the always-included module list.
func hookFunctionsPatch(module string) []system.Replacement {
	return []system.Replacement{
		{
			Old: hookModulesLine + `"`,
			New: hookModulesLine + " " + module + `"`,
		},
	}
}

// The overlay boot script is a copy of scripts/local. The first patch pins
// the read-only mount flag, the second mounts the real root at /lower and
// stacks a tmpfs upper layer on top of it at ${rootmnt}.
const (
	localReadonlyBlock = "ROOT=$(resolve_device \"$ROOT\")\n" +
		"\n" +
		"\tif [ \"${readonly}\" = \"y\" ]; then\n" +
		"\t\troflag=-r\n" +
		"\telse\n" +
		"\t\troflag=-w\n" +
		"\tfi"

	overlayReadonlyBlock = "ROOT=$(resolve_device \"$ROOT\")\n" +
		"\n" +
		"\t#if [ \"${readonly}\" = \"y\" ]; then\n" +
		"\t\troflag=-r\n" +
		"\t#else\n" +
		"\t#\troflag=-w\n" +
		"\t#fi"

	localMountBlock = "# Mount root\n" +
		"\tif [ \"${FSTYPE}\" != \"unknown\" ]; then\n" +
		"\t\tmount ${roflag} -t ${FSTYPE} ${ROOTFLAGS} ${ROOT} ${rootmnt}\n" +
		"\telse\n" +
		"\t\tmount ${roflag} ${ROOTFLAGS} ${ROOT} ${rootmnt}\n" +
		"\tfi"

	overlayMountBlock = "# Mount root\n" +
		"\tmkdir /upper /lower\n" +
		"\tif [ \"${FSTYPE}\" != \"unknown\" ]; then\n" +
		"\t\tmount ${roflag} -t ${FSTYPE} ${ROOTFLAGS} ${ROOT} /lower\n" +
		"\telse\n" +
		"\t\tmount ${roflag} ${ROOTFLAGS} ${ROOT} /lower\n" +
		"\tfi\n" +
		"\tmodprobe overlay\n" +
		"\tmount -t tmpfs tmpfs /upper\n" +
		"\tmkdir /upper/data /upper/work\n" +
		"\tmount -t overlay -olowerdir=/lower,upperdir=/upper/data,workdir=/upper/work overlay ${rootmnt}"
)

// overlayScriptPatches turns a copy of scripts/local into scripts/overlay.
func overlayScriptPatches() []system.Replacement {
	return []system.Replacement{
		{Old: localReadonlyBlock, New: overlayReadonlyBlock},
		{Old: localMountBlock, New: overlayMountBlock},
	}
}

// overlayScriptEntry is the path of the overlay boot script inside the image.
const overlayScriptEntry = "scripts/overlay"
