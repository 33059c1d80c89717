package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vidslicer/vidslicer/internal/config"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vidslicer %s (commit %s, built %s, %s)\n",
				config.Version, config.GitCommit, config.BuildTime, runtime.Version())
		},
	}
}
