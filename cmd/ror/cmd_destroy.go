package main

import (
	"github.com/spf13/cobra"

	"github.com/zoro11031/ror/internal/cli"
)

var destroyYes bool

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Remove the overlay root setup",
	Long: `Remove everything create added: the overlay boot script, the
overlay-premount and overlay-bottom directories and the boot image. The
original hook-functions is restored.

Read-only mode must be disabled first.`,
	Args: cobra.NoArgs,
	RunE: runMode("destroy", func() cli.Options { return cli.Options{AssumeYes: destroyYes} }),
}

func init() {
	destroyCmd.Flags().BoolVarP(&destroyYes, "yes", "y", false, "Skip confirmation prompt")
	rootCmd.AddCommand(destroyCmd)
}
