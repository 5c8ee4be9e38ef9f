package main

import (
	"github.com/spf13/cobra"

	"github.com/zoro11031/ror/internal/cli"
)

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Boot into the overlay root again",
	Long: `Point config.txt and cmdline.txt at the overlay boot image again after
disable. The boot image built by create is reused. Running enable while
already enabled changes nothing.`,
	Args: cobra.NoArgs,
	RunE: runMode("enable", func() cli.Options { return cli.Options{} }),
}

func init() {
	rootCmd.AddCommand(enableCmd)
}
