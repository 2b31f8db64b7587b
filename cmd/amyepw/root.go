package main

import (
	"io"

	"github.com/couchcryptid/amy-epw-etl/internal/observability"
	"github.com/spf13/cobra"
)

// app holds process-wide dependencies so tests can swap them.
type app struct {
	stdout     io.Writer
	newMetrics func() *observability.Metrics
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "amyepw",
		Short:         "Build AMY EPW weather files from NOAA ISD-Lite feeds",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetOut(a.stdout)

	rootCmd.AddCommand(newConvertCommand(a))
	rootCmd.AddCommand(newGapsCommand(a))
	return rootCmd
}
