package main

import (
	"github.com/spf13/cobra"

	"github.com/zoro11031/ror/internal/cli"
)

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Boot into the writable root",
	Long: `Restore config.txt and cmdline.txt from their backups so the next boot
uses the writable root. The overlay boot script and image stay in place for
a later enable.

When run from the overlay root itself, the boot partition is still writable
so the change survives the reboot.`,
	Args: cobra.NoArgs,
	RunE: runMode("disable", func() cli.Options { return cli.Options{} }),
}

func init() {
	rootCmd.AddCommand(disableCmd)
}
