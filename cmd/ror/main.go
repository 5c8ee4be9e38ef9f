package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zoro11031/ror/internal/cli"
	"github.com/zoro11031/ror/internal/config"
	"github.com/zoro11031/ror/internal/logging"
	"github.com/zoro11031/ror/pkg/version"
)

var (
	configPath string
	verbose    bool
)

var errMissingMode = errors.New("a mode is required: create, enable, disable, destroy or status")

var rootCmd = &cobra.Command{
	Use:   "ror",
	Short: "Read-only root for Raspberry Pi OS",
	Long: `Switch a Raspberry Pi OS install between a writable root filesystem and a
read-only one with a tmpfs overlay. While read-only mode is enabled every write
lands in memory and is discarded on reboot, leaving the SD card untouched.

Lifecycle:
  create   build the overlay boot image and enable read-only mode
  disable  boot into the writable root, keeping the overlay setup
  enable   boot into the overlay root again
  destroy  remove the overlay setup (after disable)

All modes except status need root privileges and take effect on the next boot.`,
	SilenceUsage:  true, // Usage is printed only for a missing or unknown mode
	SilenceErrors: true, // We format errors ourselves for consistent output
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			cmd.Usage()
			return fmt.Errorf("unknown mode: %s", args[0])
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Usage()
		return errMissingMode
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Info())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every file operation")
	rootCmd.AddCommand(versionCmd)
}

// newSetupContext builds the context for a mode from the global flags.
func newSetupContext(opts cli.Options) (*cli.SetupContext, error) {
	logger := logging.Setup(verbose)
	opts.ConfigPath = configPath

	ctx, err := cli.NewSetupContext(opts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize setup context: %w", err)
	}
	return ctx, nil
}

// requireRoot fails unless the process runs with uid 0. Modes that only
// read are exempt.
func requireRoot(mode string) error {
	for _, m := range cli.GetAllModes() {
		if m.Name == mode && !m.Mutates {
			return nil
		}
	}
	if os.Geteuid() != 0 {
		return fmt.Errorf("%s must be run as root (try: sudo ror %s)", mode, mode)
	}
	return nil
}

// runMode is the RunE shared by the mode commands.
func runMode(mode string, opts func() cli.Options) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(mode); err != nil {
			return err
		}

		sc, err := newSetupContext(opts())
		if err != nil {
			return err
		}
		return cli.RunMode(cmd.Context(), sc, mode)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
