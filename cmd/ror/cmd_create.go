package main

import (
	"github.com/spf13/cobra"

	"github.com/zoro11031/ror/internal/cli"
	"github.com/zoro11031/ror/internal/steps"
)

var (
	createKernelRelease string
	createBestEffort    bool
	createSkipVerify    bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Set up the overlay root and enable it",
	Long: `Build everything the overlay root needs and enable it for the next boot.

This backs up hook-functions, config.txt and cmdline.txt, adds the overlay
module to the boot image, creates the overlay boot script from scripts/local,
regenerates the boot image with update-initramfs and points config.txt and
cmdline.txt at it.

If any step fails the completed ones are rolled back.

By default a patch that does not match the installed initramfs-tools fails
the run. Use --best-effort to report such misses as warnings instead.`,
	Args: cobra.NoArgs,
	RunE: runMode("create", func() cli.Options {
		return cli.Options{
			KernelRelease: createKernelRelease,
			Steps: steps.Options{
				BestEffort: createBestEffort,
				SkipVerify: createSkipVerify,
			},
		}
	}),
}

func init() {
	createCmd.Flags().StringVar(&createKernelRelease, "kernel-release", "", "Build the boot image for this kernel release instead of the running one")
	createCmd.Flags().BoolVar(&createBestEffort, "best-effort", false, "Warn instead of failing when a patch or image check does not match")
	createCmd.Flags().BoolVar(&createSkipVerify, "skip-verify", false, "Do not inspect the regenerated boot image")
	rootCmd.AddCommand(createCmd)
}
