// Package cmd wires the admin service's command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ruko-admin",
	Short: "Read-only admin API over conversation telemetry",
	Long: `ruko-admin serves a read-only HTTP API for inspecting users,
conversations, and messages recorded by the assistant, plus aggregated
dashboard reporting.

Running ruko-admin without a subcommand starts the HTTP server.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// No subcommand starts the server.
		return runServe(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
