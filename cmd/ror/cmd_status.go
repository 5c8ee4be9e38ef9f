package main

import (
	"github.com/spf13/cobra"

	"github.com/zoro11031/ror/internal/cli"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show read-only root status",
	Long:  `Display the current state and which of the managed files exist.`,
	Args:  cobra.NoArgs,
	RunE:  runMode("status", func() cli.Options { return cli.Options{} }),
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
